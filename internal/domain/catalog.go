package domain

// CatalogItem 计费目录项（只读，来自 catalog_items）
type CatalogItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice"`
}
