package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
)

type listRepository struct {
	mu    sync.RWMutex
	lists map[types.UserID]map[types.ListID]*model.List
	items map[types.UserID]map[types.ListID][]*model.ListItem
}

func newListRepository() *listRepository {
	return &listRepository{
		lists: make(map[types.UserID]map[types.ListID]*model.List),
		items: make(map[types.UserID]map[types.ListID][]*model.ListItem),
	}
}

func copyList(l *model.List) *model.List {
	copied := *l
	return &copied
}

func copyListItem(i *model.ListItem) *model.ListItem {
	return &model.ListItem{
		ID:        i.ID,
		ListID:    i.ListID,
		Text:      i.Text,
		Completed: i.Completed,
		Tags:      copyStrings(i.Tags),
		Media:     copyMediaRef(i.Media),
		CreatedAt: i.CreatedAt,
	}
}

func (r *listRepository) CreateList(ctx context.Context, userID types.UserID, list *model.List) (*model.List, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.lists[userID]; !exists {
		r.lists[userID] = make(map[types.ListID]*model.List)
	}

	created := copyList(list)
	if created.ID == "" {
		created.ID = types.NewListID()
	}
	created.CreatedAt = time.Now().UTC()

	r.lists[userID][created.ID] = created
	return copyList(created), nil
}

func (r *listRepository) GetListByName(ctx context.Context, userID types.UserID, name string) (*model.List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.lists[userID]
	if !exists {
		return nil, nil
	}

	for _, list := range bucket {
		if strings.EqualFold(list.Name, name) {
			return copyList(list), nil
		}
	}

	return nil, nil
}

func (r *listRepository) Lists(ctx context.Context, userID types.UserID) ([]*model.List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.lists[userID]
	if !exists {
		return []*model.List{}, nil
	}

	result := make([]*model.List, 0, len(bucket))
	for _, list := range bucket {
		result = append(result, copyList(list))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *listRepository) AddItem(ctx context.Context, userID types.UserID, item *model.ListItem) (*model.ListItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lists, exists := r.lists[userID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "list not found", goerr.V("listID", item.ListID))
	}
	if _, exists := lists[item.ListID]; !exists {
		return nil, goerr.Wrap(ErrNotFound, "list not found", goerr.V("listID", item.ListID))
	}

	if _, exists := r.items[userID]; !exists {
		r.items[userID] = make(map[types.ListID][]*model.ListItem)
	}

	created := copyListItem(item)
	if created.ID == "" {
		created.ID = types.NewListItemID()
	}
	created.CreatedAt = time.Now().UTC()

	r.items[userID][item.ListID] = append(r.items[userID][item.ListID], created)
	return copyListItem(created), nil
}

func (r *listRepository) Items(ctx context.Context, userID types.UserID, listID types.ListID) ([]*model.ListItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.items[userID]
	if !exists {
		return []*model.ListItem{}, nil
	}

	items := bucket[listID]
	result := make([]*model.ListItem, 0, len(items))
	for _, item := range items {
		result = append(result, copyListItem(item))
	}

	return result, nil
}

func (r *listRepository) UpdateItem(ctx context.Context, userID types.UserID, item *model.ListItem) (*model.ListItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.items[userID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "list item not found", goerr.V("itemID", item.ID))
	}

	items := bucket[item.ListID]
	for i, existing := range items {
		if existing.ID == item.ID {
			updated := copyListItem(item)
			updated.CreatedAt = existing.CreatedAt
			items[i] = updated
			return copyListItem(updated), nil
		}
	}

	return nil, goerr.Wrap(ErrNotFound, "list item not found", goerr.V("itemID", item.ID))
}

func (r *listRepository) DeleteItem(ctx context.Context, userID types.UserID, listID types.ListID, itemID types.ListItemID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.items[userID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "list item not found", goerr.V("itemID", itemID))
	}

	items := bucket[listID]
	for i, existing := range items {
		if existing.ID == itemID {
			bucket[listID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}

	return goerr.Wrap(ErrNotFound, "list item not found", goerr.V("itemID", itemID))
}
