package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string             `db:"id" json:"id"`
	PrintifyID   string             `db:"printify_id" json:"printifyId"`
	Title        string             `db:"title" json:"title"`
	Price        float64            `db:"price" json:"price"` // USD
	Visible      bool               `db:"visible" json:"visible"`
	Inventory    *InventorySnapshot `db:"-" json:"inventory,omitempty"`
	LastSyncedAt *time.Time         `db:"-" json:"lastSyncedAt,omitempty"`
	CreatedAt    string             `db:"created_at" json:"createdAt"`
}

// InventorySnapshot is the last observed availability of every variant of a product.
// It is always replaced whole, never merged.
type InventorySnapshot struct {
	ProductID     string                   `json:"productId"`
	Variants      map[int]VariantInventory `json:"variants"`
	LastSyncedAt  time.Time                `json:"lastSyncedAt"`
	TotalInStock  int                      `json:"totalInStock"`
	TotalVariants int                      `json:"totalVariants"`
}

type VariantInventory struct {
	VariantID   int       `json:"variantId"`
	Title       string    `json:"title,omitempty"`
	IsAvailable bool      `json:"isAvailable"`
	LastChecked time.Time `json:"lastChecked"`
	Quantity    *int      `json:"quantity,omitempty"` // nil = source did not say
}

type StockStatus string

const (
	InStock    StockStatus = "IN_STOCK"
	LowStock   StockStatus = "LOW_STOCK"
	OutOfStock StockStatus = "OUT_OF_STOCK"
)

// LowStockRatio is the in-stock share of variants below which a product is LOW_STOCK.
const LowStockRatio = 0.3

// RemoteProduct is what the catalog source reports for one product.
type RemoteProduct struct {
	ID       string
	Title    string
	Variants []RemoteVariant
}

type RemoteVariant struct {
	ID          int
	Title       string
	IsAvailable bool
	IsEnabled   bool
	Quantity    *int
}

type RestockNotification struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	ProductID    string     `db:"product_id" json:"productId"`
	VariantID    int        `db:"variant_id" json:"variantId"`
	VariantTitle string     `db:"variant_title" json:"variantTitle"`
	Notified     bool       `db:"notified" json:"notified"`
	NotifiedAt   *time.Time `db:"-" json:"notifiedAt,omitempty"`
	CreatedAt    string     `db:"created_at" json:"createdAt"`
}

// RestockEvent marks a variant that went from unavailable to available between two syncs.
type RestockEvent struct {
	ProductID    string `json:"productId"`
	ProductTitle string `json:"productTitle"`
	VariantID    int    `json:"variantId"`
	VariantTitle string `json:"variantTitle"`
}

type PendingCount struct {
	ProductID string `db:"product_id" json:"productId"`
	VariantID int    `db:"variant_id" json:"variantId"`
	Pending   int    `db:"pending" json:"pending"`
}

// ExchangeRates maps currency code to units per one unit of Base.
type ExchangeRates struct {
	Base      string                     `json:"base"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"fetchedAt"`
}

// Status classifies the snapshot. It is derived on every call and never stored.
func (s InventorySnapshot) Status() StockStatus {
	if s.TotalInStock <= 0 || s.TotalVariants <= 0 {
		return OutOfStock
	}
	if float64(s.TotalInStock)/float64(s.TotalVariants) < LowStockRatio {
		return LowStock
	}
	return InStock
}
