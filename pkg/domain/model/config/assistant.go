package config

import "time"

// IntentLabel is one classifiable intent with its semantic description
type IntentLabel struct {
	Name        string
	Description string
}

// ConfirmationVocabulary holds the words accepted as yes/no answers to a
// confirmation question. Matching is exact after normalization, never fuzzy.
type ConfirmationVocabulary struct {
	Affirmations []string
	Denials      []string
}

// AssistantConfig holds the tunable behavior of the assistant
type AssistantConfig struct {
	Intents []IntentLabel

	// ConfidenceThreshold is the minimum classifier confidence to act on
	// an intent; below it the message routes to general chat.
	ConfidenceThreshold float64

	// MemoryScoreThreshold is the minimum similarity for a memory search
	// hit to count as relevant.
	MemoryScoreThreshold float64

	// MaxClarificationAttempts bounds the enrichment sub-dialog before it
	// is abandoned.
	MaxClarificationAttempts int

	// MaxHistoryTurns bounds the conversation history kept per chat
	MaxHistoryTurns int

	// TurnTimeout bounds processing of a single turn
	TurnTimeout time.Duration

	// PendingTTL is how long an unanswered clarification or confirmation
	// stays live before the next turn drops it
	PendingTTL time.Duration

	Confirmation ConfirmationVocabulary
}

// DefaultAssistantConfig returns the built-in behavior settings
func DefaultAssistantConfig() *AssistantConfig {
	return &AssistantConfig{
		Intents: []IntentLabel{
			{Name: "remember", Description: "The user states a fact about their life to store, like people they met, places they went, or things they did"},
			{Name: "recall", Description: "The user asks a question about their own stored facts, tasks, or lists"},
			{Name: "task_create", Description: "The user wants to create a task or reminder, possibly with a due time"},
			{Name: "task_list", Description: "The user asks what tasks or reminders are open"},
			{Name: "task_complete", Description: "The user says a task or reminder is done"},
			{Name: "list_add", Description: "The user wants to add an item to a named list, like a shopping list"},
			{Name: "list_show", Description: "The user asks to see a named list or all lists"},
			{Name: "list_complete", Description: "The user says an item on a list is done or bought"},
			{Name: "chat", Description: "General conversation, small talk, or a question not about the user's own data"},
			{Name: "cancel", Description: "The user wants to abort or dismiss the current operation or question"},
		},
		ConfidenceThreshold:      0.7,
		MemoryScoreThreshold:     0.40,
		MaxClarificationAttempts: 3,
		MaxHistoryTurns:          20,
		TurnTimeout:              60 * time.Second,
		PendingTTL:               10 * time.Minute,
		Confirmation: ConfirmationVocabulary{
			Affirmations: []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay", "confirm", "do it"},
			Denials:      []string{"no", "n", "nope", "cancel", "stop", "don't", "nevermind", "never mind"},
		},
	}
}
