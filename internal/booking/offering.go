package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidRange = errors.New("invalid date range")

// RatePeriod says how an offering's base rate applies.
type RatePeriod string

const (
	PerNight RatePeriod = "per_night"
	PerItem  RatePeriod = "per_item"
)

// Offering is a bookable or purchasable unit: a room type priced per
// night, or a shop product priced per item.
type Offering struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	BaseRate   decimal.Decimal `json:"baseRate"`
	MaxStock   int             `json:"maxStock"`
	RatePeriod RatePeriod      `json:"ratePeriod"`
}

// AddOnMode says how an add-on's price scales with the stay.
type AddOnMode string

const (
	PerStay    AddOnMode = "per_stay"
	PerNightly AddOnMode = "per_night"
)

// AddOn is an optional extra selected with a quantity. A quantity of
// zero contributes nothing and is omitted from persisted requests.
type AddOn struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Mode     AddOnMode       `json:"mode"`
	Quantity int             `json:"quantity"`
}

// Cost is the add-on's contribution for a stay of the given length.
func (a AddOn) Cost(nights int) decimal.Decimal {
	if a.Quantity <= 0 {
		return decimal.Zero
	}
	c := a.Price.Mul(decimal.NewFromInt(int64(a.Quantity)))
	if a.Mode == PerNightly {
		c = c.Mul(decimal.NewFromInt(int64(nights)))
	}
	return c
}

// DateRange is a half-open stay interval: check-in on Start, check-out
// on End.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Nights is the number of whole days between Start and End.
func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}

// Validate rejects inverted, zero-length and past ranges before any
// network call is made.
func (r DateRange) Validate(now time.Time) error {
	if !r.Start.Before(r.End) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidRange, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	if r.Nights() < 1 {
		return fmt.Errorf("%w: stay must cover at least one night", ErrInvalidRange)
	}
	today := now.Truncate(24 * time.Hour)
	if r.Start.Before(today) {
		return fmt.Errorf("%w: start %s is in the past", ErrInvalidRange, r.Start.Format("2006-01-02"))
	}
	return nil
}

// ActiveAddOns filters out zero-quantity selections so they never reach
// a persisted request.
func ActiveAddOns(addOns []AddOn) []AddOn {
	out := make([]AddOn, 0, len(addOns))
	for _, a := range addOns {
		if a.Quantity > 0 {
			out = append(out, a)
		}
	}
	return out
}
