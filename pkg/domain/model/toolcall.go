package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// ToolName identifies a mutating operation of the tool executor
type ToolName string

const (
	ToolCreateMemory     ToolName = "create_memory"
	ToolCreateTask       ToolName = "create_task"
	ToolCompleteTask     ToolName = "complete_task"
	ToolAddListItem      ToolName = "add_list_item"
	ToolCompleteListItem ToolName = "complete_list_item"
)

// AllToolNames returns all valid tool names
func AllToolNames() []ToolName {
	return []ToolName{
		ToolCreateMemory,
		ToolCreateTask,
		ToolCompleteTask,
		ToolAddListItem,
		ToolCompleteListItem,
	}
}

// IsValid checks if the tool name is valid
func (t ToolName) IsValid() bool {
	switch t {
	case ToolCreateMemory, ToolCreateTask, ToolCompleteTask,
		ToolAddListItem, ToolCompleteListItem:
		return true
	default:
		return false
	}
}

// Destructive reports whether the tool needs explicit user confirmation
// before it executes.
func (t ToolName) Destructive() bool {
	switch t {
	case ToolCompleteTask, ToolCompleteListItem:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tool name
func (t ToolName) String() string {
	return string(t)
}

// ToolCall is the envelope sent to the tool executor. Args are validated
// against the tool's typed argument shape before any store is touched.
type ToolCall struct {
	Tool           ToolName
	Args           map[string]any
	IdempotencyKey string
}

// NewToolCall builds an envelope with a content-derived idempotency key
func NewToolCall(chatID types.ChatID, tool ToolName, args map[string]any) *ToolCall {
	return &ToolCall{
		Tool:           tool,
		Args:           args,
		IdempotencyKey: NewIdempotencyKey(chatID, tool, args),
	}
}

// NewIdempotencyKey derives a stable key from the logical content of an
// operation. encoding/json sorts map keys, so identical args always hash
// identically regardless of insertion order.
func NewIdempotencyKey(chatID types.ChatID, tool ToolName, args map[string]any) string {
	canonical, err := json.Marshal(args)
	if err != nil {
		canonical = []byte(fmt.Sprintf("%v", args))
	}
	h := sha256.New()
	h.Write([]byte(chatID))
	h.Write([]byte{0})
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// CreateMemoryArgs are the arguments for ToolCreateMemory
type CreateMemoryArgs struct {
	Content  string   `json:"content"`
	People   []string `json:"people,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Location string   `json:"location,omitempty"`
}

// Validate checks required fields of CreateMemoryArgs
func (a *CreateMemoryArgs) Validate() error {
	if a.Content == "" {
		return goerr.New("content is required")
	}
	return nil
}

// CreateTaskArgs are the arguments for ToolCreateTask. DueAt is RFC 3339.
type CreateTaskArgs struct {
	Title    string   `json:"title"`
	DueAt    string   `json:"due_at,omitempty"`
	Priority string   `json:"priority,omitempty"`
	People   []string `json:"people,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Validate checks required fields of CreateTaskArgs
func (a *CreateTaskArgs) Validate() error {
	if a.Title == "" {
		return goerr.New("title is required")
	}
	if a.DueAt != "" {
		if _, err := time.Parse(time.RFC3339, a.DueAt); err != nil {
			return goerr.Wrap(err, "due_at must be RFC 3339", goerr.V("due_at", a.DueAt))
		}
	}
	if a.Priority != "" {
		if _, err := types.ParseTaskPriority(a.Priority); err != nil {
			return goerr.Wrap(err, "invalid priority")
		}
	}
	return nil
}

// Due returns the parsed due time, or nil when not set. Validate must have
// passed before calling.
func (a *CreateTaskArgs) Due() *time.Time {
	if a.DueAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, a.DueAt)
	if err != nil {
		return nil
	}
	return &t
}

// CompleteTaskArgs are the arguments for ToolCompleteTask
type CompleteTaskArgs struct {
	Title string `json:"title"`
}

// Validate checks required fields of CompleteTaskArgs
func (a *CompleteTaskArgs) Validate() error {
	if a.Title == "" {
		return goerr.New("title is required")
	}
	return nil
}

// AddListItemArgs are the arguments for ToolAddListItem
type AddListItemArgs struct {
	List string   `json:"list"`
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

// Validate checks required fields of AddListItemArgs
func (a *AddListItemArgs) Validate() error {
	if a.List == "" {
		return goerr.New("list is required")
	}
	if a.Text == "" {
		return goerr.New("text is required")
	}
	return nil
}

// CompleteListItemArgs are the arguments for ToolCompleteListItem
type CompleteListItemArgs struct {
	List string `json:"list"`
	Text string `json:"text"`
}

// Validate checks required fields of CompleteListItemArgs
func (a *CompleteListItemArgs) Validate() error {
	if a.List == "" {
		return goerr.New("list is required")
	}
	if a.Text == "" {
		return goerr.New("text is required")
	}
	return nil
}

// toolArgs is the tagged-variant contract: one typed shape per tool
type toolArgs interface {
	Validate() error
}

// DecodeArgs validates the dynamic argument map against the tool's typed
// shape and returns the typed variant. Malformed shapes (wrong JSON types,
// arrays where objects are expected) are rejected here, before execution
// logic ever sees them.
func (c *ToolCall) DecodeArgs() (any, error) {
	var target toolArgs
	switch c.Tool {
	case ToolCreateMemory:
		target = &CreateMemoryArgs{}
	case ToolCreateTask:
		target = &CreateTaskArgs{}
	case ToolCompleteTask:
		target = &CompleteTaskArgs{}
	case ToolAddListItem:
		target = &AddListItemArgs{}
	case ToolCompleteListItem:
		target = &CompleteListItemArgs{}
	default:
		return nil, goerr.New("unknown tool", goerr.V("tool", c.Tool))
	}

	raw, err := json.Marshal(c.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode tool args", goerr.V("tool", c.Tool))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(target); err != nil {
		return nil, goerr.Wrap(err, "malformed tool args", goerr.V("tool", c.Tool))
	}

	if err := target.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid tool args", goerr.V("tool", c.Tool))
	}

	return target, nil
}

// ExecutionRecord is the stored outcome of a tool execution, keyed by
// idempotency key so replays return the original result.
type ExecutionRecord struct {
	Key       string
	ChatID    types.ChatID
	Tool      ToolName
	Result    string
	CreatedAt time.Time
}
