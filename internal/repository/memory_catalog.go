package repository

import (
	"context"

	"remediation-engine/internal/domain"
)

// DefaultCatalog 开发环境使用的计费目录
var DefaultCatalog = []domain.CatalogItem{
	{ID: "wtr-ext", Name: "Water Extraction", Description: "Extract standing water from floor, per sq ft", UnitPrice: 1.15},
	{ID: "dehu-lgr", Name: "Dehumidifier (LGR)", Description: "Low grain refrigerant dehumidifier, per day", UnitPrice: 95},
	{ID: "antimicrobial", Name: "Antimicrobial Application", Description: "Apply antimicrobial agent, per sq ft", UnitPrice: 0.35},
	{ID: "drywall-flood-cut", Name: "Drywall Flood Cut", Description: "Remove wet drywall up to 2 ft, per linear ft", UnitPrice: 3.25},
	{ID: "baseboard-removal", Name: "Baseboard Removal", Description: "Detach and dispose baseboard, per linear ft", UnitPrice: 1.05},
	{ID: "carpet-pad-removal", Name: "Carpet Pad Removal", Description: "Remove and bag wet carpet pad, per sq ft", UnitPrice: 0.6},
	{ID: "moisture-mapping", Name: "Moisture Mapping", Description: "Moisture readings and mapping, per room", UnitPrice: 45},
	{ID: "containment", Name: "Containment Barrier", Description: "Poly containment barrier, per sq ft", UnitPrice: 0.85},
}

// MemoryCatalogRepo 内存目录
type MemoryCatalogRepo struct {
	items []domain.CatalogItem
}

func NewMemoryCatalogRepo(items []domain.CatalogItem) *MemoryCatalogRepo {
	return &MemoryCatalogRepo{items: append([]domain.CatalogItem(nil), items...)}
}

func (r *MemoryCatalogRepo) ListCatalogItems(_ context.Context) ([]domain.CatalogItem, error) {
	return append([]domain.CatalogItem(nil), r.items...), nil
}
