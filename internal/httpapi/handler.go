package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/booking"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/cart"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/checkout"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/commerce"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/money"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/order"
	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/poller"
)

// Deps wires the handler's collaborators. NewCheckout builds the
// per-session checkout flow around the session's cart; it is a factory
// so tests can swap the upstream clients.
type Deps struct {
	Carts       *cart.Manager
	Calculator  *booking.Calculator
	Journal     order.Repository
	Poller      *poller.Poller
	NewCheckout func(sessionID string, c *cart.Store) *checkout.Orchestrator
	Logger      *log.Logger
}

type Handler struct {
	deps   Deps
	logger *log.Logger

	mu        sync.Mutex
	checkouts map[string]*checkout.Orchestrator
	watches   map[string]context.CancelFunc
}

func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		deps:      deps,
		logger:    logger,
		checkouts: make(map[string]*checkout.Orchestrator),
		watches:   make(map[string]context.CancelFunc),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "storefront"})
}

type cartView struct {
	SessionID string          `json:"sessionId"`
	Items     []cart.LineItem `json:"items"`
	Subtotal  string          `json:"subtotal"`
	ItemCount int             `json:"itemCount"`
}

func (h *Handler) cartViewOf(sessionID string, s *cart.Store) cartView {
	items := s.Items()
	if items == nil {
		items = []cart.LineItem{}
	}
	return cartView{
		SessionID: sessionID,
		Items:     items,
		Subtotal:  money.Format(s.Subtotal()),
		ItemCount: s.ItemCount(),
	}
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, string, bool) {
	sessionID := chi.URLParam(r, "sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing sessionId")
		return nil, "", false
	}
	s, err := h.deps.Carts.Get(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return nil, "", false
	}
	return s, sessionID, true
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, sessionID, ok := h.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.cartViewOf(sessionID, s))
}

type addItemRequest struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	MaxStock  int             `json:"maxStock"`
	ImageRef  string          `json:"imageRef"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, sessionID, ok := h.store(w, r)
	if !ok {
		return
	}

	var body addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	_, err := s.AddItem(cart.Candidate{
		ProductID: body.ProductID,
		VariantID: body.VariantID,
		Name:      body.Name,
		SKU:       body.SKU,
		UnitPrice: body.UnitPrice,
		Quantity:  body.Quantity,
		MaxStock:  body.MaxStock,
		ImageRef:  body.ImageRef,
	})
	if err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartViewOf(sessionID, s))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, sessionID, ok := h.store(w, r)
	if !ok {
		return
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if _, err := s.UpdateQuantity(chi.URLParam(r, "itemId"), body.Quantity); err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartViewOf(sessionID, s))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, sessionID, ok := h.store(w, r)
	if !ok {
		return
	}
	if err := s.RemoveItem(chi.URLParam(r, "itemId")); err != nil {
		writeCartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cartViewOf(sessionID, s))
}

// selectionRequest is the wire shape shared by quote and checkout
// payloads. Dates use 2006-01-02.
type selectionRequest struct {
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Quantity int             `json:"quantity"`
	AddOns   []booking.AddOn `json:"addOns"`
}

func (sr selectionRequest) toSelection() (booking.Selection, error) {
	sel := booking.Selection{Quantity: sr.Quantity, AddOns: sr.AddOns}
	if sr.Start != "" || sr.End != "" {
		start, err := time.Parse("2006-01-02", sr.Start)
		if err != nil {
			return sel, err
		}
		end, err := time.Parse("2006-01-02", sr.End)
		if err != nil {
			return sel, err
		}
		sel.Range = &booking.DateRange{Start: start, End: end}
	}
	return sel, nil
}

type quoteRequest struct {
	Offering  booking.Offering `json:"offering"`
	Selection selectionRequest `json:"selection"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sel, err := body.Selection.toSelection()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	q, err := h.deps.Calculator.Quote(r.Context(), body.Offering, sel)
	if err != nil {
		if errors.Is(err, booking.ErrInvalidRange) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.Printf("quote %s: %v", body.Offering.ID, err)
		writeError(w, http.StatusBadGateway, "could not check availability")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type checkoutRequest struct {
	Contact   order.Contact     `json:"contact"`
	PickupAt  string            `json:"pickupAt"`
	Offering  *booking.Offering `json:"offering"`
	Selection selectionRequest  `json:"selection"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, sessionID, ok := h.store(w, r)
	if !ok {
		return
	}

	var body checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	req := checkout.SubmitRequest{Contact: body.Contact, Offering: body.Offering}
	if body.PickupAt != "" {
		at, err := time.Parse(time.RFC3339, body.PickupAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid pickupAt, expected RFC 3339")
			return
		}
		req.PickupAt = &at
	}
	sel, err := body.Selection.toSelection()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	req.Selection = sel

	orch := h.checkoutFor(sessionID, s)
	redirect, err := orch.Submit(r.Context(), req)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	h.startWatch(orch.OrderID())
	writeJSON(w, http.StatusOK, map[string]string{
		"orderId":     orch.OrderID(),
		"redirectUrl": redirect,
	})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var fieldErrs checkout.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrs})
	case errors.Is(err, checkout.ErrSubmitInFlight):
		writeError(w, http.StatusConflict, "checkout already in progress")
	case errors.Is(err, checkout.ErrUnavailable):
		writeError(w, http.StatusConflict, "selection is no longer available")
	default:
		var statusErr *commerce.StatusError
		if errors.As(err, &statusErr) {
			writeError(w, statusErr.Code, statusErr.Message)
			return
		}
		h.logger.Printf("checkout: %v", err)
		writeError(w, http.StatusBadGateway, "checkout failed, please try again")
	}
}

// PaymentReturn resolves the checkout when the provider redirects the
// customer back. The outcome is carried by the route, the ids by query
// params.
func (h *Handler) PaymentReturn(outcome checkout.Outcome) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		orderID := r.URL.Query().Get("order")
		if sessionID == "" || orderID == "" {
			writeError(w, http.StatusBadRequest, "missing session or order")
			return
		}

		h.mu.Lock()
		orch, ok := h.checkouts[sessionID]
		h.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "no checkout for session")
			return
		}

		h.stopWatch(orderID)
		if err := orch.Resolve(r.Context(), orderID, outcome); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID, "state": orch.State().String()})
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if h.deps.Journal == nil {
		writeError(w, http.StatusNotFound, "order journal disabled")
		return
	}
	o, err := h.deps.Journal.GetByID(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if h.deps.Journal == nil {
		writeError(w, http.StatusNotFound, "order journal disabled")
		return
	}
	orders, err := h.deps.Journal.ListBySession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) checkoutFor(sessionID string, s *cart.Store) *checkout.Orchestrator {
	h.mu.Lock()
	defer h.mu.Unlock()
	if orch, ok := h.checkouts[sessionID]; ok && !orch.State().IsTerminal() {
		return orch
	}
	orch := h.deps.NewCheckout(sessionID, s)
	h.checkouts[sessionID] = orch
	return orch
}

// startWatch covers the gap where the customer closes the provider tab
// and never hits the return URL: the poller keeps watching the order
// until it resolves remotely. The entry is removed as soon as the
// watch ends, however it ends, so abandoned orders do not accumulate.
func (h *Handler) startWatch(orderID string) {
	if h.deps.Poller == nil || orderID == "" {
		return
	}
	h.mu.Lock()
	if _, ok := h.watches[orderID]; ok {
		h.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.watches[orderID] = cancel
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.watches, orderID)
			h.mu.Unlock()
			cancel()
		}()
		if _, err := h.deps.Poller.Watch(ctx, orderID); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Printf("watch order %s: %v", orderID, err)
		}
	}()
}

func (h *Handler) stopWatch(orderID string) {
	h.mu.Lock()
	cancel, ok := h.watches[orderID]
	delete(h.watches, orderID)
	h.mu.Unlock()
	if ok {
		cancel()
	}
}

func writeCartError(w http.ResponseWriter, err error) {
	var vErr *cart.ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": vErr.Message, "field": vErr.Field})
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
