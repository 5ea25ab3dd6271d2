package interfaces

import (
	"context"

	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

// ListRepository defines the interface for list and list item persistence
type ListRepository interface {
	// CreateList creates a new named list
	CreateList(ctx context.Context, userID types.UserID, list *model.List) (*model.List, error)

	// GetListByName retrieves a list by its name (case-insensitive).
	// Returns nil without error when no such list exists.
	GetListByName(ctx context.Context, userID types.UserID, name string) (*model.List, error)

	// Lists retrieves all lists for a user
	Lists(ctx context.Context, userID types.UserID) ([]*model.List, error)

	// AddItem appends an item to a list
	AddItem(ctx context.Context, userID types.UserID, item *model.ListItem) (*model.ListItem, error)

	// Items retrieves all items of a list in insertion order
	Items(ctx context.Context, userID types.UserID, listID types.ListID) ([]*model.ListItem, error)

	// UpdateItem replaces an item's mutable fields
	UpdateItem(ctx context.Context, userID types.UserID, item *model.ListItem) (*model.ListItem, error)

	// DeleteItem deletes an item by ID
	DeleteItem(ctx context.Context, userID types.UserID, listID types.ListID, itemID types.ListItemID) error
}
