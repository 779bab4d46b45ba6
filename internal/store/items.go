package store

import (
	"context"
	"encoding/json"
	"fmt"

	"pantrywatch/internal/types"
)

// ItemRepository is the PostgreSQL grocery document collection. Items are
// stored as one JSONB document per row so that the shape can evolve with the
// client without migrations.
//
// Schema:
//
//	CREATE TABLE grocery_items (
//	    user_id    text NOT NULL,
//	    item_id    text NOT NULL,
//	    doc        jsonb NOT NULL,
//	    updated_at timestamptz NOT NULL DEFAULT now(),
//	    PRIMARY KEY (user_id, item_id)
//	);
type ItemRepository struct {
	db     DBTX
	logger types.Logger
}

// NewItemRepository creates an ItemRepository.
func NewItemRepository(db DBTX, logger types.Logger) *ItemRepository {
	return &ItemRepository{db: db, logger: logger}
}

// GetItems returns every item for the user as a fresh snapshot. A row whose
// document fails to decode is logged and skipped so one corrupt item cannot
// block the whole check cycle.
func (r *ItemRepository) GetItems(ctx context.Context, userID string) ([]types.GroceryItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT item_id, doc FROM grocery_items WHERE user_id = $1 ORDER BY item_id`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list grocery items", err)
	}
	defer rows.Close()

	var items []types.GroceryItem
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan grocery item", err)
		}
		var item types.GroceryItem
		if err := json.Unmarshal(doc, &item); err != nil {
			r.logger.Warn("skipping malformed grocery item document", "itemId", id, "error", err)
			continue
		}
		item.ID = id
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate grocery items", err)
	}
	return items, nil
}

// GetItem returns a single item by id.
func (r *ItemRepository) GetItem(ctx context.Context, userID, itemID string) (*types.GroceryItem, error) {
	var doc []byte
	err := r.db.QueryRow(ctx,
		`SELECT doc FROM grocery_items WHERE user_id = $1 AND item_id = $2`,
		userID, itemID,
	).Scan(&doc)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundItem, fmt.Sprintf("item %s not found", itemID), nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read grocery item", err)
	}
	var item types.GroceryItem
	if err := json.Unmarshal(doc, &item); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "malformed grocery item document", err)
	}
	item.ID = itemID
	return &item, nil
}

// UpdateItem merges the given top-level fields into the item's document.
// Fields use the document's JSON names (e.g. "totalDays", "lastUpdated").
func (r *ItemRepository) UpdateItem(ctx context.Context, userID, itemID string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode item update", err)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE grocery_items SET doc = doc || $3::jsonb, updated_at = now()
		 WHERE user_id = $1 AND item_id = $2`,
		userID, itemID, patch,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update grocery item", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundItem, fmt.Sprintf("item %s not found", itemID), nil)
	}
	return nil
}

// QueryByField returns the items whose top-level document field equals value.
func (r *ItemRepository) QueryByField(ctx context.Context, userID, field string, value any) ([]types.GroceryItem, error) {
	want, err := json.Marshal(value)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode query value", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT item_id, doc FROM grocery_items
		 WHERE user_id = $1 AND doc -> $2 = $3::jsonb
		 ORDER BY item_id`,
		userID, field, want,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query grocery items", err)
	}
	defer rows.Close()

	var items []types.GroceryItem
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan grocery item", err)
		}
		var item types.GroceryItem
		if err := json.Unmarshal(doc, &item); err != nil {
			r.logger.Warn("skipping malformed grocery item document", "itemId", id, "error", err)
			continue
		}
		item.ID = id
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate grocery items", err)
	}
	return items, nil
}

var _ types.ItemStore = (*ItemRepository)(nil)
