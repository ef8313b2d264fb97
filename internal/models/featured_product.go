package models

import (
	"time"

	"github.com/google/uuid"
)

// FeaturedProduct is a catalog item highlighted during a live session.
// DisplayOrder is dense and 0-based per session: after any add, remove or
// reorder the orders form a permutation of [0, n).
type FeaturedProduct struct {
	ID            uuid.UUID `json:"id"`
	LiveSessionID uuid.UUID `json:"live_session_id"`
	ProductID     uuid.UUID `json:"product_id"`
	DisplayOrder  int       `json:"display_order"`
	IsActive      bool      `json:"is_active"`
	SpecialPrice  *int64    `json:"special_price,omitempty"` // cents
	StockLimit    *int      `json:"stock_limit,omitempty"`
	SoldCount     int       `json:"sold_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
