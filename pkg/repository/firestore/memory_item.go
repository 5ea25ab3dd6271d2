package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/otomo/pkg/domain/model"
	"github.com/secmon-lab/otomo/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// memoryItemDoc is the Firestore document representation of model.MemoryItem.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type memoryItemDoc struct {
	ID        types.MemoryItemID `firestore:"ID"`
	Content   string             `firestore:"Content"`
	People    []string           `firestore:"People,omitempty"`
	Tags      []string           `firestore:"Tags,omitempty"`
	Location  string             `firestore:"Location,omitempty"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`

	// Distance is populated only by vector search queries
	Distance float64 `firestore:"vector_distance,omitempty"`
}

func toMemoryItemDoc(item *model.MemoryItem) *memoryItemDoc {
	doc := &memoryItemDoc{
		ID:        item.ID,
		Content:   item.Content,
		People:    item.People,
		Tags:      item.Tags,
		Location:  item.Location,
		CreatedAt: item.CreatedAt,
	}
	if len(item.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(item.Embedding)
	}
	return doc
}

func fromMemoryItemDoc(d *memoryItemDoc) *model.MemoryItem {
	item := &model.MemoryItem{
		ID:        d.ID,
		Content:   d.Content,
		People:    d.People,
		Tags:      d.Tags,
		Location:  d.Location,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		item.Embedding = []float32(d.Embedding)
	}
	return item
}

type memoryItemRepository struct {
	client *firestore.Client
}

func newMemoryItemRepository(client *firestore.Client) *memoryItemRepository {
	return &memoryItemRepository{client: client}
}

func (r *memoryItemRepository) collection(userID types.UserID) *firestore.CollectionRef {
	return userDoc(r.client, userID.String()).Collection("memories")
}

func (r *memoryItemRepository) Create(ctx context.Context, userID types.UserID, item *model.MemoryItem) (*model.MemoryItem, error) {
	if item.ID == "" {
		item.ID = types.NewMemoryItemID()
	}
	item.CreatedAt = time.Now().UTC()

	docRef := r.collection(userID).Doc(item.ID.String())
	if _, err := docRef.Set(ctx, toMemoryItemDoc(item)); err != nil {
		return nil, goerr.Wrap(err, "failed to create memory item")
	}

	return item, nil
}

func (r *memoryItemRepository) Get(ctx context.Context, userID types.UserID, itemID types.MemoryItemID) (*model.MemoryItem, error) {
	doc, err := r.collection(userID).Doc(itemID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "memory item not found", goerr.V("itemID", itemID))
		}
		return nil, goerr.Wrap(err, "failed to get memory item", goerr.V("itemID", itemID))
	}

	var d memoryItemDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory item", goerr.V("itemID", itemID))
	}

	return fromMemoryItemDoc(&d), nil
}

func (r *memoryItemRepository) Delete(ctx context.Context, userID types.UserID, itemID types.MemoryItemID) error {
	docRef := r.collection(userID).Doc(itemID.String())

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "memory item not found", goerr.V("itemID", itemID))
		}
		return goerr.Wrap(err, "failed to get memory item", goerr.V("itemID", itemID))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete memory item", goerr.V("itemID", itemID))
	}

	return nil
}

func (r *memoryItemRepository) List(ctx context.Context, userID types.UserID) ([]*model.MemoryItem, error) {
	iter := r.collection(userID).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	items := make([]*model.MemoryItem, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory items")
		}

		var d memoryItemDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory item")
		}

		items = append(items, fromMemoryItemDoc(&d))
	}

	return items, nil
}

func (r *memoryItemRepository) FindByEmbedding(ctx context.Context, userID types.UserID, embedding []float32, limit int) ([]*model.ScoredMemoryItem, error) {
	vq := r.collection(userID).FindNearest(
		"Embedding",
		firestore.Vector32(embedding),
		limit,
		firestore.DistanceMeasureCosine,
		&firestore.FindNearestOptions{
			DistanceResultField: "vector_distance",
		},
	)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	results := make([]*model.ScoredMemoryItem, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results")
		}

		var d memoryItemDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory item from vector search")
		}

		// Cosine distance is 0-2; clamp the derived similarity to 0-1
		score := 1.0 - d.Distance
		if score < 0 {
			score = 0
		}

		results = append(results, &model.ScoredMemoryItem{
			Item:  fromMemoryItemDoc(&d),
			Score: score,
		})
	}

	return results, nil
}
