package usecase

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrInvalidMessage indicates an inbound message without the fields a
	// turn needs
	ErrInvalidMessage = goerr.New("invalid message")
)

// Canned replies for dialog control flow. The LLM never generates these; the
// state machine answers deterministically.
const (
	replyCancelled       = "Okay, cancelled."
	replyNothingToCancel = "There's nothing to cancel right now."
	replyDenied          = "Okay, I won't."
	replyGaveUp          = "Let's leave that for now. Just tell me again when you're ready."
	replyExpiredNotice   = "(I dropped my earlier question since it's been a while.)\n"
	replyNotUnderstood   = "Sorry, I didn't catch that."
	replyUnclearIntent   = "I'm not quite sure what you'd like me to do. Could you put it another way?"
)
