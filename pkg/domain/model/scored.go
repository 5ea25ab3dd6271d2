package model

// ScoredMemoryItem pairs a memory item with its similarity score for the
// query embedding. Score is 0-1, derived from cosine distance.
type ScoredMemoryItem struct {
	Item  *MemoryItem
	Score float64
}
