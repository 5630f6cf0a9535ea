package checkout

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/booking"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/cart"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/commerce"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/notify"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/order"
)

type placerMock struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
	fn      func(ctx context.Context, req commerce.OrderRequest) (commerce.OrderResponse, error)
}

func (m *placerMock) CreateOrder(ctx context.Context, req commerce.OrderRequest) (commerce.OrderResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.entered != nil {
		close(m.entered)
	}
	if m.release != nil {
		<-m.release
	}
	return m.fn(ctx, req)
}

func (m *placerMock) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type starterMock struct {
	calls      int
	successURL string
	cancelURL  string
	fn         func(ctx context.Context, orderID, successURL, cancelURL string) (string, error)
}

func (m *starterMock) CreateCheckoutSession(ctx context.Context, orderID, successURL, cancelURL string) (string, error) {
	m.calls++
	m.successURL = successURL
	m.cancelURL = cancelURL
	return m.fn(ctx, orderID, successURL, cancelURL)
}

type journalMock struct {
	created  []order.Order
	statuses map[string]order.Status
}

func (m *journalMock) Create(_ context.Context, o *order.Order) error {
	m.created = append(m.created, *o)
	return nil
}

func (m *journalMock) UpdateStatus(_ context.Context, orderID string, to order.Status) error {
	if m.statuses == nil {
		m.statuses = map[string]order.Status{}
	}
	m.statuses[orderID] = to
	return nil
}

type sinkMock struct {
	mu       sync.Mutex
	messages []string
	kinds    []notify.Kind
}

func (m *sinkMock) Notify(_ context.Context, kind notify.Kind, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
	m.messages = append(m.messages, message)
}

func (m *sinkMock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type checkerMock struct {
	fn func(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error)
}

func (m *checkerMock) CheckAvailability(ctx context.Context, offeringID string, sel booking.Selection) (booking.Availability, error) {
	return m.fn(ctx, offeringID, sel)
}

func available() *checkerMock {
	return &checkerMock{fn: func(context.Context, string, booking.Selection) (booking.Availability, error) {
		return booking.Availability{Available: true}, nil
	}}
}

func validContact() order.Contact {
	return order.Contact{FirstName: "Astrid", LastName: "Lind", Email: "astrid@example.com", Phone: "+46 70 123 45 67"}
}

func stayRequest() SubmitRequest {
	start := time.Now().AddDate(0, 0, 30).Truncate(24 * time.Hour)
	return SubmitRequest{
		Contact:  validContact(),
		Offering: &booking.Offering{ID: "room-sea-view", BaseRate: decimal.NewFromInt(145), RatePeriod: booking.PerNight},
		Selection: booking.Selection{
			Range: &booking.DateRange{Start: start, End: start.AddDate(0, 0, 3)},
		},
	}
}

type fixture struct {
	orch    *Orchestrator
	cart    *cart.Store
	placer  *placerMock
	starter *starterMock
	journal *journalMock
	sink    *sinkMock
}

func newFixture(t *testing.T, checker booking.AvailabilityChecker) *fixture {
	t.Helper()

	c := cart.New("sess-1", nil, cart.Options{})
	_, err := c.AddItem(cart.Candidate{
		ProductID: "cinnamon-bun",
		Name:      "Cinnamon bun",
		UnitPrice: decimal.RequireFromString("4.50"),
		Quantity:  2,
		MaxStock:  10,
	})
	require.NoError(t, err)

	placer := &placerMock{fn: func(context.Context, commerce.OrderRequest) (commerce.OrderResponse, error) {
		return commerce.OrderResponse{OrderID: "ord-1", Status: "pending_payment"}, nil
	}}
	starter := &starterMock{fn: func(_ context.Context, orderID, _, _ string) (string, error) {
		return "https://pay.example.com/session/" + orderID, nil
	}}
	journal := &journalMock{}
	sink := &sinkMock{}

	orch := NewOrchestrator(Config{
		SessionID:  "sess-1",
		Cart:       c,
		Calculator: booking.NewCalculator(checker),
		Orders:     placer,
		Payments:   starter,
		Journal:    journal,
		Sink:       sink,
		SuccessURL: "https://shop.example.com/checkout/success",
		CancelURL:  "https://shop.example.com/checkout/cancel",
	})
	return &fixture{orch: orch, cart: c, placer: placer, starter: starter, journal: journal, sink: sink}
}

func TestSubmitHappyPath(t *testing.T) {
	f := newFixture(t, available())

	url, err := f.orch.Submit(context.Background(), stayRequest())
	require.NoError(t, err)
	require.Equal(t, "https://pay.example.com/session/ord-1", url)
	require.Equal(t, StateRedirecting, f.orch.State())
	require.Equal(t, "ord-1", f.orch.OrderID())

	require.Len(t, f.journal.created, 1)
	rec := f.journal.created[0]
	require.Equal(t, order.StatusPendingPayment, rec.Status)
	require.Equal(t, "room-sea-view", rec.OfferingID)
	// 2 × 4.50 shop items plus 3 nights × 145
	require.True(t, rec.Subtotal.Equal(decimal.RequireFromString("9.00")), "subtotal %s", rec.Subtotal)
	require.True(t, rec.RoomTotal.Equal(decimal.NewFromInt(435)), "room total %s", rec.RoomTotal)
	require.True(t, rec.Total.Equal(decimal.RequireFromString("444.00")), "total %s", rec.Total)

	// The cart is not cleared until the payment is confirmed.
	require.Equal(t, 2, f.cart.ItemCount())
	require.Zero(t, f.sink.count())
}

func TestSubmitScopesReturnURLsToOrder(t *testing.T) {
	f := newFixture(t, available())

	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.NoError(t, err)

	// The provider redirects to these verbatim; they must identify the
	// checkout on their own.
	for _, raw := range []string{f.starter.successURL, f.starter.cancelURL} {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, "sess-1", u.Query().Get("session"))
		require.Equal(t, "ord-1", u.Query().Get("order"))
	}
	require.Equal(t, "/checkout/success", mustParse(t, f.starter.successURL).Path)
	require.Equal(t, "/checkout/cancel", mustParse(t, f.starter.cancelURL).Path)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSubmitDuplicateIsDropped(t *testing.T) {
	f := newFixture(t, available())
	f.placer.entered = make(chan struct{})
	f.placer.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Submit(context.Background(), stayRequest())
		done <- err
	}()
	<-f.placer.entered

	// A second click while the first submission is mid flight must not
	// create a second order or surface anything to the user.
	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.ErrorIs(t, err, ErrSubmitInFlight)

	close(f.placer.release)
	require.NoError(t, <-done)

	require.Equal(t, 1, f.placer.callCount())
	require.Equal(t, 1, f.starter.calls)
	require.Zero(t, f.sink.count())
}

func TestSubmitRefusedWhenUnavailable(t *testing.T) {
	unavailable := &checkerMock{fn: func(context.Context, string, booking.Selection) (booking.Availability, error) {
		return booking.Availability{Available: false}, nil
	}}
	f := newFixture(t, unavailable)

	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, StateEditing, f.orch.State())

	require.Zero(t, f.placer.callCount())
	require.Zero(t, f.starter.calls)
	require.Empty(t, f.journal.created)
	require.Equal(t, 2, f.cart.ItemCount())
	require.Equal(t, 1, f.sink.count())
	require.Equal(t, notify.KindError, f.sink.kinds[0])
}

func TestSubmitContactValidation(t *testing.T) {
	f := newFixture(t, available())

	req := stayRequest()
	req.Contact.Email = "not-an-email"
	req.Contact.Phone = "12"

	_, err := f.orch.Submit(context.Background(), req)

	var fieldErrs FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Contains(t, fieldErrs, "email")
	require.Contains(t, fieldErrs, "phone")
	require.Equal(t, StateEditing, f.orch.State())
	require.Zero(t, f.placer.callCount())
	require.Equal(t, 1, f.sink.count())
}

func TestSubmitRejectsPastPickup(t *testing.T) {
	f := newFixture(t, available())

	past := time.Now().Add(-time.Hour)
	_, err := f.orch.Submit(context.Background(), SubmitRequest{Contact: validContact(), PickupAt: &past})

	var fieldErrs FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Contains(t, fieldErrs, "pickupAt")
	require.Zero(t, f.placer.callCount())
}

func TestSubmitSurfacesBackendMessage(t *testing.T) {
	f := newFixture(t, available())
	f.placer.fn = func(context.Context, commerce.OrderRequest) (commerce.OrderResponse, error) {
		return commerce.OrderResponse{}, &commerce.StatusError{Code: 409, Message: "room no longer available"}
	}

	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.Error(t, err)
	require.Equal(t, StateEditing, f.orch.State())
	require.Equal(t, 2, f.cart.ItemCount())
	require.Equal(t, []string{"room no longer available"}, f.sink.messages)
}

func TestSubmitPaymentSessionFailure(t *testing.T) {
	f := newFixture(t, available())
	f.starter.fn = func(context.Context, string, string, string) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}

	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.Error(t, err)
	require.Equal(t, StateEditing, f.orch.State())
	// The order exists remotely even though the session failed.
	require.Equal(t, "ord-1", f.orch.OrderID())
	require.Equal(t, 1, f.sink.count())
}

func TestResolveSuccessClearsCart(t *testing.T) {
	f := newFixture(t, available())
	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.NoError(t, err)

	require.NoError(t, f.orch.Resolve(context.Background(), "ord-1", OutcomeSuccess))
	require.Equal(t, StateResolvedSuccess, f.orch.State())
	require.Equal(t, order.StatusPaid, f.journal.statuses["ord-1"])
	require.Zero(t, f.cart.ItemCount())
}

func TestResolveCancelledKeepsCart(t *testing.T) {
	f := newFixture(t, available())
	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.NoError(t, err)

	require.NoError(t, f.orch.Resolve(context.Background(), "ord-1", OutcomeCancelled))
	require.Equal(t, StateResolvedCancelled, f.orch.State())
	require.Equal(t, order.StatusCancelled, f.journal.statuses["ord-1"])
	require.Equal(t, 2, f.cart.ItemCount())
}

func TestSubmitAfterResolveRejected(t *testing.T) {
	f := newFixture(t, available())
	_, err := f.orch.Submit(context.Background(), stayRequest())
	require.NoError(t, err)
	require.NoError(t, f.orch.Resolve(context.Background(), "ord-1", OutcomeSuccess))

	_, err = f.orch.Submit(context.Background(), stayRequest())
	require.Error(t, err)
}
