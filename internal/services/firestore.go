package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/remote"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const itemsCollection = "shopping_items"

// FirestoreService stores shopping items in Cloud Firestore and turns query
// snapshots into change notifications.
type FirestoreService struct {
	client *firestore.Client
	log    logging.Logger
	now    func() time.Time
}

func NewFirestoreService(ctx context.Context, projectID string, log logging.Logger, opts ...option.ClientOption) (*FirestoreService, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreService{
		client: client,
		log:    log,
		now:    time.Now,
	}, nil
}

func (fs *FirestoreService) Close() error {
	return fs.client.Close()
}

func (fs *FirestoreService) items() *firestore.CollectionRef {
	return fs.client.Collection(itemsCollection)
}

func (fs *FirestoreService) ListItems(ctx context.Context) ([]models.ShoppingItem, error) {
	iter := fs.items().OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var items []models.ShoppingItem
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate items: %w", mapError(err))
		}

		var item models.ShoppingItem
		if err := doc.DataTo(&item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item: %w", err)
		}
		item.ID = doc.Ref.ID
		items = append(items, item)
	}

	return items, nil
}

func (fs *FirestoreService) InsertItem(ctx context.Context, n models.NewItem) error {
	item := models.ShoppingItem{
		ID:            uuid.New().String(),
		Text:          n.Text,
		Memo:          n.Memo,
		IsCompleted:   false,
		CreatedByName: n.CreatedByName,
		UserID:        n.UserID,
		CreatedAt:     fs.now(),
	}

	if _, err := fs.items().Doc(item.ID).Create(ctx, item); err != nil {
		return fmt.Errorf("failed to create item: %w", mapError(err))
	}
	return nil
}

func (fs *FirestoreService) UpdateItem(ctx context.Context, id string, u remote.ItemUpdate) error {
	updates := buildUpdates(u)
	if len(updates) == 0 {
		return nil
	}
	if _, err := fs.items().Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update item %s: %w", id, mapError(err))
	}
	return nil
}

func (fs *FirestoreService) DeleteItem(ctx context.Context, id string) error {
	if _, err := fs.items().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, mapError(err))
	}
	return nil
}

// WatchItems listens to the whole collection. The listener's first snapshot
// only reflects current state and is not reported.
func (fs *FirestoreService) WatchItems(ctx context.Context) (<-chan remote.Change, error) {
	iter := fs.items().Snapshots(ctx)
	if _, err := iter.Next(); err != nil {
		iter.Stop()
		return nil, fmt.Errorf("failed to listen for item changes: %w", mapError(err))
	}

	out := make(chan remote.Change)
	go func() {
		defer close(out)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					fs.log.Error(ctx, "item listener stopped", "error", err)
				}
				return
			}
			if len(snap.Changes) == 0 {
				continue
			}
			select {
			case out <- remote.Change{Event: changeEvent(snap.Changes)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func buildUpdates(u remote.ItemUpdate) []firestore.Update {
	var updates []firestore.Update
	if u.IsCompleted != nil {
		updates = append(updates, firestore.Update{Path: "is_completed", Value: *u.IsCompleted})
	}
	if u.SetCompletedAt {
		if u.CompletedAt == nil {
			updates = append(updates, firestore.Update{Path: "completed_at", Value: firestore.Delete})
		} else {
			updates = append(updates, firestore.Update{Path: "completed_at", Value: *u.CompletedAt})
		}
	}
	if u.Memo != nil {
		updates = append(updates, firestore.Update{Path: "memo", Value: *u.Memo})
	}
	return updates
}

func changeEvent(changes []firestore.DocumentChange) string {
	seen := map[string]bool{}
	var kinds []string
	for _, c := range changes {
		var k string
		switch c.Kind {
		case firestore.DocumentAdded:
			k = "INSERT"
		case firestore.DocumentModified:
			k = "UPDATE"
		case firestore.DocumentRemoved:
			k = "DELETE"
		}
		if k != "" && !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return strings.Join(kinds, ",")
}

func mapError(err error) error {
	if status.Code(err) == codes.NotFound {
		return &notFoundError{err: err}
	}
	return err
}
