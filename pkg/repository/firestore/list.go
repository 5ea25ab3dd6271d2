package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type listDoc struct {
	ID        types.ListID `firestore:"ID"`
	Name      string       `firestore:"Name"`
	NameLower string       `firestore:"NameLower"`
	CreatedAt time.Time    `firestore:"CreatedAt"`
}

type listItemDoc struct {
	ID        types.ListItemID `firestore:"ID"`
	ListID    types.ListID     `firestore:"ListID"`
	Text      string           `firestore:"Text"`
	Completed bool             `firestore:"Completed"`
	Tags      []string         `firestore:"Tags,omitempty"`
	Media     *mediaRefDoc     `firestore:"Media,omitempty"`
	CreatedAt time.Time        `firestore:"CreatedAt"`
}

func fromListItemDoc(d *listItemDoc) *model.ListItem {
	return &model.ListItem{
		ID:        d.ID,
		ListID:    d.ListID,
		Text:      d.Text,
		Completed: d.Completed,
		Tags:      d.Tags,
		Media:     fromMediaRefDoc(d.Media),
		CreatedAt: d.CreatedAt,
	}
}

type listRepository struct {
	client *firestore.Client
}

func newListRepository(client *firestore.Client) *listRepository {
	return &listRepository{client: client}
}

func (r *listRepository) listsCollection(userID types.UserID) *firestore.CollectionRef {
	return userDoc(r.client, userID.String()).Collection("lists")
}

func (r *listRepository) itemsCollection(userID types.UserID, listID types.ListID) *firestore.CollectionRef {
	return r.listsCollection(userID).Doc(listID.String()).Collection("items")
}

func (r *listRepository) CreateList(ctx context.Context, userID types.UserID, list *model.List) (*model.List, error) {
	if list.ID == "" {
		list.ID = types.NewListID()
	}
	list.CreatedAt = time.Now().UTC()

	doc := &listDoc{
		ID:        list.ID,
		Name:      list.Name,
		NameLower: strings.ToLower(list.Name),
		CreatedAt: list.CreatedAt,
	}

	if _, err := r.listsCollection(userID).Doc(list.ID.String()).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to create list", goerr.V("name", list.Name))
	}

	return list, nil
}

func (r *listRepository) GetListByName(ctx context.Context, userID types.UserID, name string) (*model.List, error) {
	iter := r.listsCollection(userID).
		Where("NameLower", "==", strings.ToLower(name)).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query list by name", goerr.V("name", name))
	}

	var d listDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal list", goerr.V("name", name))
	}

	return &model.List{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt}, nil
}

func (r *listRepository) Lists(ctx context.Context, userID types.UserID) ([]*model.List, error) {
	iter := r.listsCollection(userID).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	lists := make([]*model.List, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate lists")
		}

		var d listDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal list")
		}

		lists = append(lists, &model.List{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt})
	}

	return lists, nil
}

func (r *listRepository) AddItem(ctx context.Context, userID types.UserID, item *model.ListItem) (*model.ListItem, error) {
	if _, err := r.listsCollection(userID).Doc(item.ListID.String()).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "list not found", goerr.V("listID", item.ListID))
		}
		return nil, goerr.Wrap(err, "failed to get list", goerr.V("listID", item.ListID))
	}

	if item.ID == "" {
		item.ID = types.NewListItemID()
	}
	item.CreatedAt = time.Now().UTC()

	doc := &listItemDoc{
		ID:        item.ID,
		ListID:    item.ListID,
		Text:      item.Text,
		Completed: item.Completed,
		Tags:      item.Tags,
		Media:     toMediaRefDoc(item.Media),
		CreatedAt: item.CreatedAt,
	}

	if _, err := r.itemsCollection(userID, item.ListID).Doc(item.ID.String()).Set(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to add list item", goerr.V("listID", item.ListID))
	}

	return item, nil
}

func (r *listRepository) Items(ctx context.Context, userID types.UserID, listID types.ListID) ([]*model.ListItem, error) {
	iter := r.itemsCollection(userID, listID).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	items := make([]*model.ListItem, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate list items", goerr.V("listID", listID))
		}

		var d listItemDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal list item", goerr.V("listID", listID))
		}

		items = append(items, fromListItemDoc(&d))
	}

	return items, nil
}

func (r *listRepository) UpdateItem(ctx context.Context, userID types.UserID, item *model.ListItem) (*model.ListItem, error) {
	docRef := r.itemsCollection(userID, item.ListID).Doc(item.ID.String())

	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "list item not found", goerr.V("itemID", item.ID))
		}
		return nil, goerr.Wrap(err, "failed to get list item", goerr.V("itemID", item.ID))
	}

	var existing listItemDoc
	if err := doc.DataTo(&existing); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal list item", goerr.V("itemID", item.ID))
	}
	item.CreatedAt = existing.CreatedAt

	updated := &listItemDoc{
		ID:        item.ID,
		ListID:    item.ListID,
		Text:      item.Text,
		Completed: item.Completed,
		Tags:      item.Tags,
		Media:     toMediaRefDoc(item.Media),
		CreatedAt: item.CreatedAt,
	}

	if _, err := docRef.Set(ctx, updated); err != nil {
		return nil, goerr.Wrap(err, "failed to update list item", goerr.V("itemID", item.ID))
	}

	return item, nil
}

func (r *listRepository) DeleteItem(ctx context.Context, userID types.UserID, listID types.ListID, itemID types.ListItemID) error {
	docRef := r.itemsCollection(userID, listID).Doc(itemID.String())

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "list item not found", goerr.V("itemID", itemID))
		}
		return goerr.Wrap(err, "failed to get list item", goerr.V("itemID", itemID))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete list item", goerr.V("itemID", itemID))
	}

	return nil
}
