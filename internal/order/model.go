package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Fulfillment is either a pickup slot (click & collect, no shipping)
// or the stay dates of a reservation.
type Fulfillment struct {
	PickupAt *time.Time `json:"pickupAt,omitempty"`
	CheckIn  *time.Time `json:"checkIn,omitempty"`
	CheckOut *time.Time `json:"checkOut,omitempty"`
}

// Order is the local journal record of an order submitted to the remote
// commerce API. Immutable once pending_payment except for status
// transitions driven by the payment provider's callback.
type Order struct {
	ID          string          `json:"orderId"`
	SessionID   string          `json:"sessionId"`
	OfferingID  string          `json:"offeringId,omitempty"`
	Items       []Item          `json:"items,omitempty"`
	Contact     Contact         `json:"contact"`
	Fulfillment Fulfillment     `json:"fulfillment"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	RoomTotal   decimal.Decimal `json:"roomTotal"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}
