package domain

type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	PublishedAt *string   `json:"published_at"`
	Variants    []Variant `json:"variants"`
}

type Variant struct {
	ID                int64   `json:"id"`
	ProductID         int64   `json:"product_id"`
	Title             string  `json:"title"`
	SKU               *string `json:"sku"`
	Barcode           *string `json:"barcode"`
	InventoryItemID   int64   `json:"inventory_item_id"`
	InventoryQuantity int     `json:"inventory_quantity"`
}

type InventoryLevel struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Available       *int   `json:"available"`
	UpdatedAt       string `json:"updated_at"`
}

type Webhook struct {
	ID         int64  `json:"id,omitempty"`
	Topic      string `json:"topic"`
	Address    string `json:"address"`
	Format     string `json:"format,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// ProductQuery selects a product listing.
type ProductQuery struct {
	PublishedStatus string
	Limit           int
}

const (
	PublishedStatusPublished = "published"
	PublishedStatusAny       = "any"
)
