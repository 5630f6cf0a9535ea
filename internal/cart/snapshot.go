package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// PostgresSnapshotStore keeps the local-only cart fallback: a flat list
// of line-item rows keyed by session.
type PostgresSnapshotStore struct {
	db *sql.DB
}

func NewPostgresSnapshotStore(db *sql.DB) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

func (r *PostgresSnapshotStore) Load(ctx context.Context, sessionID string) ([]LineItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, variant_id, name, sku, unit_price, quantity, max_stock, image_ref
         FROM cart_snapshot_items WHERE session_id = $1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.Name, &it.SKU,
			&it.UnitPrice, &it.Quantity, &it.MaxStock, &it.ImageRef); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresSnapshotStore) Save(ctx context.Context, sessionID string, items []LineItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM cart_snapshot_items WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	if len(items) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO cart_snapshot_items (id, session_id, position, product_id, variant_id, name, sku, unit_price, quantity, max_stock, image_ref)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
		if perr != nil {
			err = perr
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for pos, it := range items {
			id := it.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err = stmt.ExecContext(ctx, id, sessionID, pos, it.ProductID, it.VariantID,
				it.Name, it.SKU, it.UnitPrice, it.Quantity, it.MaxStock, it.ImageRef); err != nil {
				return fmt.Errorf("insert snapshot row: %w", err)
			}
		}
	}

	err = tx.Commit()
	return err
}
