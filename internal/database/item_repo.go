package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/kdimtricp/lostfound/internal/store"
)

// ItemRepository implements store.Store on top of the session database.
type ItemRepository struct {
	db *DB
}

var _ store.Store = (*ItemRepository)(nil)

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const selectItems = `
	SELECT id, kind, description, location, image, image_mime_type, features, created_at
	FROM items`

func (r *ItemRepository) Append(ctx context.Context, item models.Item) error {
	features := item.Features.Clone()
	featuresJSON, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	image := item.Image
	if image == nil {
		image = []byte{}
	}

	query := `
		INSERT INTO items (id, kind, description, location, image, image_mime_type, features, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.conn.ExecContext(ctx, query,
		item.ID,
		string(item.Kind),
		item.Description,
		item.Location,
		image,
		item.ImageMIMEType,
		string(featuresJSON),
		item.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (r *ItemRepository) ListAll(ctx context.Context) ([]models.Item, error) {
	rows, err := r.db.conn.QueryContext(ctx, selectItems+` ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return scanItems(rows)
}

func (r *ItemRepository) ListByKind(ctx context.Context, kind models.ReportKind) ([]models.Item, error) {
	rows, err := r.db.conn.QueryContext(ctx, selectItems+` WHERE kind = ? ORDER BY seq ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s items: %w", kind, err)
	}
	return scanItems(rows)
}

func (r *ItemRepository) Find(ctx context.Context, id string) (models.Item, error) {
	row := r.db.conn.QueryRowContext(ctx, selectItems+` WHERE id = ? ORDER BY seq ASC LIMIT 1`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, store.ErrNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (models.Item, error) {
	var (
		item         models.Item
		kind         string
		featuresJSON string
		createdAt    int64
	)
	if err := s.Scan(&item.ID, &kind, &item.Description, &item.Location,
		&item.Image, &item.ImageMIMEType, &featuresJSON, &createdAt); err != nil {
		return models.Item{}, err
	}
	if err := json.Unmarshal([]byte(featuresJSON), &item.Features); err != nil {
		return models.Item{}, fmt.Errorf("failed to unmarshal features: %w", err)
	}
	if item.Features.DistinguishingFeatures == nil {
		item.Features.DistinguishingFeatures = []string{}
	}
	item.Kind = models.ReportKind(kind)
	item.CreatedAt = time.Unix(0, createdAt)
	return item, nil
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return items, nil
}
