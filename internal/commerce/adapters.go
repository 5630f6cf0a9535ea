package commerce

import (
	"context"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/booking"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/cart"
)

// CartRemote adapts the commerce client to the cart store's view of the
// remote cart.
type CartRemote struct {
	c *Client
}

func NewCartRemote(c *Client) *CartRemote { return &CartRemote{c: c} }

func (r *CartRemote) FetchCart(ctx context.Context, sessionID string) ([]cart.LineItem, error) {
	remote, err := r.c.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items := make([]cart.LineItem, 0, len(remote.Items))
	for _, it := range remote.Items {
		items = append(items, cart.LineItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			SKU:       it.SKU,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			MaxStock:  it.MaxStock,
			ImageRef:  it.ImageRef,
		})
	}
	return items, nil
}

func (r *CartRemote) UpsertItem(ctx context.Context, sessionID string, it cart.LineItem) error {
	_, err := r.c.UpsertCartItem(ctx, sessionID, toWireItem(it))
	return err
}

func (r *CartRemote) RemoveItem(ctx context.Context, sessionID, itemID string) error {
	_, err := r.c.RemoveCartItem(ctx, sessionID, itemID)
	return err
}

func toWireItem(it cart.LineItem) CartItem {
	return CartItem{
		ID:        it.ID,
		ProductID: it.ProductID,
		VariantID: it.VariantID,
		Name:      it.Name,
		SKU:       it.SKU,
		UnitPrice: it.UnitPrice,
		Quantity:  it.Quantity,
		MaxStock:  it.MaxStock,
		ImageRef:  it.ImageRef,
	}
}

// AvailabilitySource adapts the commerce client to the calculator's
// availability query.
type AvailabilitySource struct {
	c *Client
}

func NewAvailabilitySource(c *Client) *AvailabilitySource { return &AvailabilitySource{c: c} }

func (s *AvailabilitySource) CheckAvailability(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error) {
	req := AvailabilityRequest{OfferingID: offeringID, Quantity: sel.Quantity}
	if sel.Range != nil {
		req.Start = sel.Range.Start.Format("2006-01-02")
		req.End = sel.Range.End.Format("2006-01-02")
	}

	resp, err := s.c.CheckAvailability(ctx, req)
	if err != nil {
		return booking.Availability{}, err
	}
	return booking.Availability{Available: resp.Available, BaseRate: resp.BaseRate}, nil
}
