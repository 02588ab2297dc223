package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem(id string, kind models.ReportKind) models.Item {
	return models.Item{
		ID:            id,
		Kind:          kind,
		Description:   "desc " + id,
		Location:      "library",
		Image:         []byte("img-" + id),
		ImageMIMEType: "image/png",
		Features: models.ItemFeatures{
			ItemName:               "Item " + id,
			Brand:                  models.BrandNotApplicable,
			DistinguishingFeatures: []string{"f-" + id},
		},
		CreatedAt: time.Unix(0, 0),
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("Empty", func(t *testing.T) {
		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		_, err = s.Find(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, s.Append(ctx, testItem("a", models.KindFound)))
	require.NoError(t, s.Append(ctx, testItem("b", models.KindLost)))
	require.NoError(t, s.Append(ctx, testItem("c", models.KindFound)))

	t.Run("ListAllInsertionOrder", func(t *testing.T) {
		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "b", "c"}, ids(all))
	})

	t.Run("ListByKind", func(t *testing.T) {
		found, err := s.ListByKind(ctx, models.KindFound)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(found))

		lost, err := s.ListByKind(ctx, models.KindLost)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(lost))
	})

	t.Run("ReturnedItemsAreCopies", func(t *testing.T) {
		all, err := s.ListAll(ctx)
		require.NoError(t, err)
		all[0].Image[0] = 'X'
		all[0].Features.DistinguishingFeatures[0] = "changed"

		got, err := s.Find(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("img-a"), got.Image)
		assert.Equal(t, []string{"f-a"}, got.Features.DistinguishingFeatures)
	})

	t.Run("NoUniquenessCheck", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Append(ctx, testItem("dup", models.KindLost)))
		require.NoError(t, s.Append(ctx, testItem("dup", models.KindLost)))
		assert.Equal(t, 2, s.Len())
	})
}

func TestMemoryStoreConcurrentReaders(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.ListAll(ctx)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Append(ctx, testItem(NewItemID(), models.KindFound)))
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestNewItemIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewItemID()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func ids(items []models.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}
