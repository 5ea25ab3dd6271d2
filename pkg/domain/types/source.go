package types

import "fmt"

// Source identifies a searchable data source
type Source string

const (
	SourceMemory Source = "memory"
	SourceTasks  Source = "tasks"
	SourceLists  Source = "lists"
)

// AllSources returns all searchable sources
func AllSources() []Source {
	return []Source{
		SourceMemory,
		SourceTasks,
		SourceLists,
	}
}

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceMemory, SourceTasks, SourceLists:
		return true
	default:
		return false
	}
}

// String returns the string representation of the source
func (s Source) String() string {
	return string(s)
}

// ParseSource parses a string into a Source
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !src.IsValid() {
		return "", fmt.Errorf("invalid source: %s", s)
	}
	return src, nil
}
