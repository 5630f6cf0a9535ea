package cart

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

// Key identifies a cart row. Adding an already-present variant merges
// quantities instead of duplicating rows.
type Key struct {
	ProductID string
	VariantID string
}

// LineItem is one purchasable row in a cart.
// Invariant: 1 <= Quantity <= MaxStock.
type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	MaxStock  int             `json:"maxStock"`
	ImageRef  string          `json:"imageRef,omitempty"`

	// preview is a transient resource (e.g. a local image handle) owned
	// by the store and released when the row is removed.
	preview io.Closer
}

func (it LineItem) Key() Key {
	return Key{ProductID: it.ProductID, VariantID: it.VariantID}
}

// AttachPreview hands ownership of a transient resource to the cart.
func (it *LineItem) AttachPreview(c io.Closer) {
	it.preview = c
}

func (it *LineItem) releasePreview() {
	if it.preview != nil {
		_ = it.preview.Close()
		it.preview = nil
	}
}

// ValidationError reports bad caller input. It is recoverable and never
// retried automatically.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Subtotal recomputes the cart total from scratch.
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// ItemCount is the summed quantity across all rows.
func ItemCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func clampQuantity(q, maxStock int) int {
	if q < 1 {
		q = 1
	}
	if maxStock >= 1 && q > maxStock {
		q = maxStock
	}
	return q
}
