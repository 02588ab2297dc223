package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kdimtricp/lostfound/internal/models"
)

var ErrNotFound = errors.New("item not found")

// Store is the append-only item collection of one session. It does not
// check id uniqueness; callers supply ids from NewItemID.
type Store interface {
	Append(ctx context.Context, item models.Item) error
	ListAll(ctx context.Context) ([]models.Item, error)
	ListByKind(ctx context.Context, kind models.ReportKind) ([]models.Item, error)
	Find(ctx context.Context, id string) (models.Item, error)
}

// NewItemID returns a UUIDv7: a millisecond timestamp followed by random bits.
func NewItemID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
