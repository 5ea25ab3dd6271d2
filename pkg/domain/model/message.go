package model

import (
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// MediaRef points at media attached to a message. Path is a storage path for
// file media; location media carries coordinates instead.
type MediaRef struct {
	Type      types.MediaType
	Path      string
	Latitude  float64
	Longitude float64
	Caption   string
}

// IncomingMessage is one inbound user message delivered by a transport adapter
type IncomingMessage struct {
	ChatID types.ChatID
	UserID types.UserID
	Text   string
	Media  *MediaRef
}

// Reply is the assistant's answer to a turn. AttachmentType is set when the
// executed operation stored media, so the transport can indicate it.
type Reply struct {
	Text           string
	AttachmentType types.MediaType
}

// Classification is the output of the intent classifier
type Classification struct {
	Intent     types.Intent
	Confidence float64
}
