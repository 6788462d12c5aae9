package repository

import (
	"context"
	"database/sql"
	"fmt"

	"remediation-engine/internal/domain"
)

// PostgresCatalogRepo catalog_items 表（只读）
type PostgresCatalogRepo struct {
	db *sql.DB
}

func NewPostgresCatalogRepo(db *sql.DB) *PostgresCatalogRepo {
	return &PostgresCatalogRepo{db: db}
}

func (r *PostgresCatalogRepo) ListCatalogItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, name, COALESCE(description, ''), unit_price
		FROM catalog_items
		WHERE active = TRUE
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	items := []domain.CatalogItem{}
	for rows.Next() {
		var it domain.CatalogItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
