package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/booking"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/cart"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/commerce"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/notify"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/order"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/payment"
)

var (
	// ErrSubmitInFlight means a submission is already running for this
	// session. The duplicate is dropped silently: no order, no
	// notification.
	ErrSubmitInFlight = errors.New("checkout already in progress")

	// ErrUnavailable means the backend reported the selection as not
	// available, so no order was created.
	ErrUnavailable = errors.New("selection is not available")
)

// OrderPlacer is the slice of the commerce API client used to create
// the order remotely.
type OrderPlacer interface {
	CreateOrder(ctx context.Context, req commerce.OrderRequest) (commerce.OrderResponse, error)
}

// SessionStarter creates a hosted payment session and returns the URL
// to redirect the customer to.
type SessionStarter interface {
	CreateCheckoutSession(ctx context.Context, orderID, successURL, cancelURL string) (string, error)
}

// Journal records orders locally. A nil journal disables local
// record keeping.
type Journal interface {
	Create(ctx context.Context, o *order.Order) error
	UpdateStatus(ctx context.Context, orderID string, to order.Status) error
}

// SubmitRequest carries everything the customer confirmed on the
// checkout page. Offering and Selection are set for reservations and
// nil for plain shop orders.
type SubmitRequest struct {
	Contact   order.Contact
	PickupAt  *time.Time
	Offering  *booking.Offering
	Selection booking.Selection
}

// Outcome is the payment provider's verdict, delivered via the
// success or cancel callback.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
)

// Config wires the orchestrator's collaborators.
type Config struct {
	SessionID  string
	Cart       *cart.Store
	Calculator *booking.Calculator
	Orders     OrderPlacer
	Payments   SessionStarter
	Journal    Journal
	Sink       notify.Sink
	Logger     *log.Logger
	SuccessURL string
	CancelURL  string
	TaxRate    decimal.Decimal // zero for tax-inclusive prices
}

// Orchestrator drives one session's checkout from editing through
// payment redirect. At most one submission runs at a time; any failure
// returns the session to editing with the cart intact and exactly one
// user-facing notification.
type Orchestrator struct {
	cfg    Config
	logger *log.Logger
	sink   notify.Sink

	mu       sync.Mutex
	state    State
	inFlight bool
	orderID  string
}

func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = notify.NewLogSink(logger)
	}
	return &Orchestrator{cfg: cfg, logger: logger, sink: sink, state: StateEditing}
}

// State reports the current position in the checkout sequence.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OrderID is the remote order id once one has been created.
func (o *Orchestrator) OrderID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderID
}

// Submit runs the checkout sequence and returns the payment redirect
// URL. A second Submit while one is in flight returns
// ErrSubmitInFlight without side effects.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	if o.state.IsTerminal() {
		o.mu.Unlock()
		return "", fmt.Errorf("checkout already resolved as %s", o.state)
	}
	o.inFlight = true
	o.state = StateValidating
	o.mu.Unlock()

	redirect, err := o.run(ctx, req)

	o.mu.Lock()
	o.inFlight = false
	if err != nil {
		o.state = StateEditing
	} else {
		o.state = StateRedirecting
	}
	o.mu.Unlock()
	return redirect, err
}

func (o *Orchestrator) run(ctx context.Context, req SubmitRequest) (string, error) {
	errs := ValidateContact(req.Contact)
	if req.PickupAt != nil && req.PickupAt.Before(time.Now()) {
		if errs == nil {
			errs = FieldErrors{}
		}
		errs["pickupAt"] = "must be in the future"
	}
	if errs != nil {
		o.sink.Notify(ctx, notify.KindError, "Please check the highlighted fields and try again.")
		return "", errs
	}

	var quote *booking.Quote
	if req.Offering != nil {
		q, err := o.cfg.Calculator.Quote(ctx, *req.Offering, req.Selection)
		if err != nil {
			o.notifyFailure(ctx, err)
			return "", fmt.Errorf("price selection: %w", err)
		}
		if !q.Available {
			o.sink.Notify(ctx, notify.KindError, "The selected dates are no longer available.")
			return "", ErrUnavailable
		}
		quote = &q
	}

	o.setState(StateCreatingOrder)

	wire := o.buildOrderRequest(req, quote)
	resp, err := o.cfg.Orders.CreateOrder(ctx, wire)
	if err != nil {
		o.notifyFailure(ctx, err)
		return "", fmt.Errorf("create order: %w", err)
	}

	o.mu.Lock()
	o.orderID = resp.OrderID
	o.mu.Unlock()

	o.journalOrder(ctx, resp.OrderID, req, wire)

	o.setState(StateCreatingPaymentSession)

	redirect, err := o.cfg.Payments.CreateCheckoutSession(ctx, resp.OrderID,
		o.callbackURL(o.cfg.SuccessURL, resp.OrderID),
		o.callbackURL(o.cfg.CancelURL, resp.OrderID))
	if err != nil {
		o.notifyFailure(ctx, err)
		return "", fmt.Errorf("create payment session: %w", err)
	}
	return redirect, nil
}

// callbackURL scopes a configured return destination to this
// submission. The provider redirects to it verbatim, so the query
// params are all the callback handler has to locate the checkout.
func (o *Orchestrator) callbackURL(base, orderID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("session", o.cfg.SessionID)
	q.Set("order", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}

// buildOrderRequest snapshots the cart and reservation into the wire
// payload. The cart is read once here so a concurrent edit cannot
// split the order across two versions.
func (o *Orchestrator) buildOrderRequest(req SubmitRequest, quote *booking.Quote) commerce.OrderRequest {
	items := o.cfg.Cart.Items()
	wireItems := make([]commerce.CartItem, 0, len(items))
	for _, it := range items {
		wireItems = append(wireItems, commerce.CartItem{
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

	subtotal := o.cfg.Cart.Subtotal()
	roomTotal := decimal.Zero

	var reservation *commerce.Reservation
	if req.Offering != nil && quote != nil {
		roomTotal = quote.GrandTotal
		reservation = &commerce.Reservation{OfferingID: req.Offering.ID}
		if req.Selection.Range != nil {
			reservation.Start = req.Selection.Range.Start.Format("2006-01-02")
			reservation.End = req.Selection.Range.End.Format("2006-01-02")
		}
		for _, a := range booking.ActiveAddOns(req.Selection.AddOns) {
			reservation.AddOns = append(reservation.AddOns, commerce.OrderedAddOn{ID: a.ID, Quantity: a.Quantity})
		}
	}

	tax := subtotal.Add(roomTotal).Mul(o.cfg.TaxRate).Round(2)
	total := subtotal.Add(roomTotal).Add(tax)

	wire := commerce.OrderRequest{
		SessionID:   o.cfg.SessionID,
		Items:       wireItems,
		Reservation: reservation,
		Contact: commerce.Contact{
			FirstName: req.Contact.FirstName,
			LastName:  req.Contact.LastName,
			Email:     req.Contact.Email,
			Phone:     req.Contact.Phone,
		},
		Subtotal:  subtotal,
		Tax:       tax,
		RoomTotal: roomTotal,
		Total:     total,
	}
	if req.PickupAt != nil {
		wire.PickupAt = req.PickupAt.Format(time.RFC3339)
	}
	return wire
}

// journalOrder records the order locally as pending_payment. The remote
// order already exists, so a journal failure is logged and checkout
// continues.
func (o *Orchestrator) journalOrder(ctx context.Context, orderID string, req SubmitRequest, wire commerce.OrderRequest) {
	if o.cfg.Journal == nil {
		return
	}

	rec := order.Order{
		ID:        orderID,
		SessionID: o.cfg.SessionID,
		Contact:   req.Contact,
		Subtotal:  wire.Subtotal,
		Tax:       wire.Tax,
		RoomTotal: wire.RoomTotal,
		Total:     wire.Total,
		Status:    order.StatusPendingPayment,
		CreatedAt: time.Now().UTC(),
	}
	rec.Fulfillment.PickupAt = req.PickupAt
	if req.Offering != nil {
		rec.OfferingID = req.Offering.ID
		if req.Selection.Range != nil {
			in, out := req.Selection.Range.Start, req.Selection.Range.End
			rec.Fulfillment.CheckIn = &in
			rec.Fulfillment.CheckOut = &out
		}
	}
	for _, it := range wire.Items {
		rec.Items = append(rec.Items, order.Item{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Name:      it.Name,
			SKU:       it.SKU,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	if err := o.cfg.Journal.Create(ctx, &rec); err != nil {
		o.logger.Printf("journal order %s: %v", orderID, err)
	}
}

// Resolve applies the payment provider's verdict. Success clears the
// cart; the cart survives a cancelled or abandoned payment so the
// customer can retry.
func (o *Orchestrator) Resolve(ctx context.Context, orderID string, outcome Outcome) error {
	o.mu.Lock()
	if o.orderID == "" {
		o.orderID = orderID
	}
	o.mu.Unlock()

	switch outcome {
	case OutcomeSuccess:
		o.updateJournal(ctx, orderID, order.StatusPaid)
		o.cfg.Cart.Clear()
		o.setState(StateResolvedSuccess)
		o.sink.Notify(ctx, notify.KindSuccess, "Payment received. Thank you for your order!")
		return nil
	case OutcomeCancelled:
		o.updateJournal(ctx, orderID, order.StatusCancelled)
		o.setState(StateResolvedCancelled)
		o.sink.Notify(ctx, notify.KindInfo, "Payment was cancelled. Your cart is unchanged.")
		return nil
	default:
		return fmt.Errorf("unknown checkout outcome %q", outcome)
	}
}

func (o *Orchestrator) updateJournal(ctx context.Context, orderID string, to order.Status) {
	if o.cfg.Journal == nil {
		return
	}
	if err := o.cfg.Journal.UpdateStatus(ctx, orderID, to); err != nil {
		o.logger.Printf("journal order %s status %s: %v", orderID, to, err)
	}
}

// notifyFailure surfaces backend-reported messages verbatim and a
// generic message for transport problems. One notification per failed
// submission.
func (o *Orchestrator) notifyFailure(ctx context.Context, err error) {
	var statusErr *commerce.StatusError
	if errors.As(err, &statusErr) {
		o.sink.Notify(ctx, notify.KindError, statusErr.Message)
		return
	}
	var sessionErr *payment.SessionError
	if errors.As(err, &sessionErr) {
		o.sink.Notify(ctx, notify.KindError, sessionErr.Message)
		return
	}
	o.sink.Notify(ctx, notify.KindError, "Something went wrong while placing your order. Please try again.")
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
