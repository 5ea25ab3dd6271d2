package model

import (
	"time"

	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// List is a named collection of items. Lists auto-create on the first item
// added under an unknown name.
type List struct {
	ID        types.ListID
	Name      string
	CreatedAt time.Time
}

// ListItem is a single entry of a list
type ListItem struct {
	ID        types.ListItemID
	ListID    types.ListID
	Text      string
	Completed bool
	Tags      []string
	Media     *MediaRef
	CreatedAt time.Time
}
