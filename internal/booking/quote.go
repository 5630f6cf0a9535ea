package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Availability is what the remote commerce API reports for an offering
// over a range or quantity. The remote rate, when present, overrides the
// locally cached base rate.
type Availability struct {
	Available bool
	BaseRate  decimal.Decimal
}

// AvailabilityChecker is the slice of the remote commerce API the
// calculator needs.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, offeringID string, sel Selection) (Availability, error)
}

// Selection is what the guest picked: a date range for per-night
// offerings, a quantity for per-item ones, plus any add-ons.
type Selection struct {
	Range    *DateRange
	Quantity int
	AddOns   []AddOn
}

// Quote is the computed price/availability result for one selection.
// It is recomputed from scratch on every input change and never cached
// across a changed range or offering.
type Quote struct {
	OfferingID  string          `json:"offeringId"`
	Nights      int             `json:"nights,omitempty"`
	Units       int             `json:"units,omitempty"`
	UnitTotal   decimal.Decimal `json:"unitTotal"`
	AddOnsTotal decimal.Decimal `json:"addOnsTotal"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Available   bool            `json:"available"`
}

// Calculator prices a selection against an offering. It holds no
// per-quote state and is safe to share.
type Calculator struct {
	availability AvailabilityChecker
	now          func() time.Time
}

func NewCalculator(availability AvailabilityChecker) *Calculator {
	return &Calculator{availability: availability, now: time.Now}
}

// Quote validates the selection, checks availability remotely, and
// prices the stay. An unavailable offering yields a zero-total quote
// with Available=false; pricing is not attempted.
func (c *Calculator) Quote(ctx context.Context, off Offering, sel Selection) (Quote, error) {
	nights, units, err := c.extent(off, sel)
	if err != nil {
		return Quote{}, err
	}

	avail, err := c.availability.CheckAvailability(ctx, off.ID, sel)
	if err != nil {
		return Quote{}, fmt.Errorf("check availability for %s: %w", off.ID, err)
	}
	if !avail.Available {
		return Quote{OfferingID: off.ID, Nights: nights, Units: units, Available: false}, nil
	}

	rate := off.BaseRate
	if avail.BaseRate.IsPositive() {
		rate = avail.BaseRate
	}

	var unitTotal decimal.Decimal
	if off.RatePeriod == PerNight {
		unitTotal = rate.Mul(decimal.NewFromInt(int64(nights)))
	} else {
		unitTotal = rate.Mul(decimal.NewFromInt(int64(units)))
	}

	addOnsTotal := decimal.Zero
	for _, a := range sel.AddOns {
		addOnsTotal = addOnsTotal.Add(a.Cost(nights))
	}

	return Quote{
		OfferingID:  off.ID,
		Nights:      nights,
		Units:       units,
		UnitTotal:   unitTotal,
		AddOnsTotal: addOnsTotal,
		GrandTotal:  unitTotal.Add(addOnsTotal),
		Available:   true,
	}, nil
}

// extent validates the selection against the offering's rate period and
// returns how many nights or units to price. Bad ranges fail here,
// before any network call.
func (c *Calculator) extent(off Offering, sel Selection) (nights, units int, err error) {
	if off.RatePeriod == PerNight {
		if sel.Range == nil {
			return 0, 0, fmt.Errorf("%w: date range is required for %s", ErrInvalidRange, off.ID)
		}
		if err := sel.Range.Validate(c.now()); err != nil {
			return 0, 0, err
		}
		return sel.Range.Nights(), 0, nil
	}

	if sel.Quantity < 1 {
		return 0, 0, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidRange)
	}
	return 0, sel.Quantity, nil
}
