package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/booking"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/money"
)

type checkerMock struct {
	CheckAvailabilityFunc func(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error)
	calls                 int
}

func (m *checkerMock) CheckAvailability(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error) {
	m.calls++
	if m.CheckAvailabilityFunc != nil {
		return m.CheckAvailabilityFunc(ctx, offeringID, sel)
	}
	return booking.Availability{Available: true}, nil
}

func futureRange(t *testing.T, nights int) *booking.DateRange {
	t.Helper()
	start := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
	return &booking.DateRange{Start: start, End: start.AddDate(0, 0, nights)}
}

func TestQuotePerNight(t *testing.T) {
	room := booking.Offering{
		ID:         "double-room",
		Name:       "Double Room",
		BaseRate:   money.MustParse("145.00"),
		MaxStock:   4,
		RatePeriod: booking.PerNight,
	}

	t.Run("base rate times nights plus per-night add-on", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		sel := booking.Selection{
			Range: futureRange(t, 3),
			AddOns: []booking.AddOn{
				{ID: "breakfast", Price: money.MustParse("15.00"), Mode: booking.PerNightly, Quantity: 2},
			},
		}

		q, err := calc.Quote(context.Background(), room, sel)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if !q.Available {
			t.Fatal("expected available quote")
		}
		if got := money.Format(q.UnitTotal); got != "435.00" {
			t.Fatalf("unit total = %s, want 435.00", got)
		}
		if got := money.Format(q.AddOnsTotal); got != "90.00" {
			t.Fatalf("add-ons total = %s, want 90.00", got)
		}
		if got := money.Format(q.GrandTotal); got != "525.00" {
			t.Fatalf("grand total = %s, want 525.00", got)
		}
	})

	t.Run("per-stay add-on ignores nights", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		sel := booking.Selection{
			Range: futureRange(t, 5),
			AddOns: []booking.AddOn{
				{ID: "late-checkout", Price: money.MustParse("25.00"), Mode: booking.PerStay, Quantity: 1},
			},
		}

		q, err := calc.Quote(context.Background(), room, sel)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if got := money.Format(q.AddOnsTotal); got != "25.00" {
			t.Fatalf("add-ons total = %s, want 25.00", got)
		}
	})

	t.Run("changed range reprices per-night add-ons", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		addOns := []booking.AddOn{
			{ID: "breakfast", Price: money.MustParse("15.00"), Mode: booking.PerNightly, Quantity: 1},
		}

		q1, err := calc.Quote(context.Background(), room, booking.Selection{Range: futureRange(t, 2), AddOns: addOns})
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		q2, err := calc.Quote(context.Background(), room, booking.Selection{Range: futureRange(t, 4), AddOns: addOns})
		if err != nil {
			t.Fatalf("quote: %v", err)
		}

		if got := money.Format(q1.AddOnsTotal); got != "30.00" {
			t.Fatalf("2-night add-ons = %s, want 30.00", got)
		}
		if got := money.Format(q2.AddOnsTotal); got != "60.00" {
			t.Fatalf("4-night add-ons = %s, want 60.00", got)
		}
	})

	t.Run("zero-quantity add-on contributes nothing", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		sel := booking.Selection{
			Range: futureRange(t, 3),
			AddOns: []booking.AddOn{
				{ID: "breakfast", Price: money.MustParse("15.00"), Mode: booking.PerNightly, Quantity: 0},
			},
		}

		q, err := calc.Quote(context.Background(), room, sel)
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if !q.AddOnsTotal.IsZero() {
			t.Fatalf("add-ons total = %s, want 0", q.AddOnsTotal)
		}
		if got := money.Format(q.GrandTotal); got != "435.00" {
			t.Fatalf("grand total = %s, want 435.00", got)
		}
	})

	t.Run("unavailable offering yields zero total and no pricing", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{
			CheckAvailabilityFunc: func(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error) {
				return booking.Availability{Available: false}, nil
			},
		})

		q, err := calc.Quote(context.Background(), room, booking.Selection{Range: futureRange(t, 3)})
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if q.Available {
			t.Fatal("expected unavailable quote")
		}
		if !q.GrandTotal.IsZero() || !q.UnitTotal.IsZero() {
			t.Fatalf("expected zero totals, got %+v", q)
		}
	})

	t.Run("remote rate overrides local base rate", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{
			CheckAvailabilityFunc: func(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error) {
				return booking.Availability{Available: true, BaseRate: money.MustParse("160.00")}, nil
			},
		})

		q, err := calc.Quote(context.Background(), room, booking.Selection{Range: futureRange(t, 2)})
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if got := money.Format(q.UnitTotal); got != "320.00" {
			t.Fatalf("unit total = %s, want 320.00", got)
		}
	})
}

func TestQuoteRejectsBadSelections(t *testing.T) {
	room := booking.Offering{ID: "double-room", BaseRate: money.MustParse("145.00"), RatePeriod: booking.PerNight}

	t.Run("inverted range fails before any network call", func(t *testing.T) {
		checker := &checkerMock{}
		calc := booking.NewCalculator(checker)

		start := time.Now().AddDate(0, 0, 10)
		_, err := calc.Quote(context.Background(), room, booking.Selection{
			Range: &booking.DateRange{Start: start, End: start.AddDate(0, 0, -2)},
		})
		if !errors.Is(err, booking.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
		if checker.calls != 0 {
			t.Fatalf("availability was queried %d times for an invalid range", checker.calls)
		}
	})

	t.Run("zero-length range rejected", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		start := time.Now().AddDate(0, 0, 10)
		_, err := calc.Quote(context.Background(), room, booking.Selection{
			Range: &booking.DateRange{Start: start, End: start},
		})
		if !errors.Is(err, booking.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("past range rejected", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		start := time.Now().AddDate(0, 0, -5)
		_, err := calc.Quote(context.Background(), room, booking.Selection{
			Range: &booking.DateRange{Start: start, End: start.AddDate(0, 0, 2)},
		})
		if !errors.Is(err, booking.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("missing range for per-night offering", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		_, err := calc.Quote(context.Background(), room, booking.Selection{Quantity: 2})
		if !errors.Is(err, booking.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})
}

func TestQuotePerItem(t *testing.T) {
	hamper := booking.Offering{
		ID:         "fika-hamper",
		BaseRate:   money.MustParse("39.50"),
		MaxStock:   10,
		RatePeriod: booking.PerItem,
	}

	t.Run("base rate times quantity", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		q, err := calc.Quote(context.Background(), hamper, booking.Selection{Quantity: 3})
		if err != nil {
			t.Fatalf("quote: %v", err)
		}
		if got := money.Format(q.GrandTotal); got != "118.50" {
			t.Fatalf("grand total = %s, want 118.50", got)
		}
		if q.Units != 3 {
			t.Fatalf("units = %d, want 3", q.Units)
		}
	})

	t.Run("quantity below one rejected", func(t *testing.T) {
		calc := booking.NewCalculator(&checkerMock{})
		_, err := calc.Quote(context.Background(), hamper, booking.Selection{Quantity: 0})
		if !errors.Is(err, booking.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})
}

func TestActiveAddOns(t *testing.T) {
	addOns := []booking.AddOn{
		{ID: "breakfast", Quantity: 2, Price: decimal.New(15, 0)},
		{ID: "parking", Quantity: 0, Price: decimal.New(10, 0)},
	}

	active := booking.ActiveAddOns(addOns)
	if len(active) != 1 || active[0].ID != "breakfast" {
		t.Fatalf("unexpected active add-ons %+v", active)
	}
}
