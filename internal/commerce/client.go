package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/middleware"
)

// Client talks to the remote commerce API: the source of truth for
// carts, availability and orders.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		// Fail fast: config error
		panic(fmt.Sprintf("invalid commerce api base url %q: %v", baseURL, err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}
}

// StatusError is a failure the backend reported itself, as opposed to a
// transport problem. Its message is surfaced to the user verbatim.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("commerce api: %d %s", e.Code, e.Message)
}

// CartItem is the wire shape of one cart row.
type CartItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	MaxStock  int             `json:"maxStock"`
	ImageRef  string          `json:"imageRef,omitempty"`
}

type Cart struct {
	SessionID string     `json:"sessionId"`
	Items     []CartItem `json:"items"`
}

func (c *Client) GetCart(ctx context.Context, sessionID string) (Cart, error) {
	var out Cart
	err := c.do(ctx, http.MethodGet, "/api/cart/"+sessionID, nil, &out)
	return out, err
}

func (c *Client) UpsertCartItem(ctx context.Context, sessionID string, item CartItem) (Cart, error) {
	var out Cart
	err := c.do(ctx, http.MethodPost, "/api/cart/"+sessionID+"/items", item, &out)
	return out, err
}

func (c *Client) RemoveCartItem(ctx context.Context, sessionID, itemID string) (Cart, error) {
	var out Cart
	err := c.do(ctx, http.MethodDelete, "/api/cart/"+sessionID+"/items/"+itemID, nil, &out)
	return out, err
}

// AvailabilityRequest queries one offering over a date range or
// quantity.
type AvailabilityRequest struct {
	OfferingID string `json:"offeringId"`
	Start      string `json:"start,omitempty"` // 2006-01-02
	End        string `json:"end,omitempty"`
	Quantity   int    `json:"quantity,omitempty"`
}

type AvailabilityResponse struct {
	Available bool            `json:"available"`
	BaseRate  decimal.Decimal `json:"baseRate"`
}

func (c *Client) CheckAvailability(ctx context.Context, req AvailabilityRequest) (AvailabilityResponse, error) {
	var out AvailabilityResponse
	err := c.do(ctx, http.MethodPost, "/api/availability", req, &out)
	return out, err
}

// OrderRequest is the payload for creating an order from a finalized
// cart or reservation.
type OrderRequest struct {
	SessionID   string          `json:"sessionId"`
	Items       []CartItem      `json:"items,omitempty"`
	Reservation *Reservation    `json:"reservation,omitempty"`
	Contact     Contact         `json:"contact"`
	PickupAt    string          `json:"pickupAt,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	RoomTotal   decimal.Decimal `json:"roomTotal"`
	Total       decimal.Decimal `json:"total"`
}

type Reservation struct {
	OfferingID string         `json:"offeringId"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	AddOns     []OrderedAddOn `json:"addOns,omitempty"`
}

type OrderedAddOn struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type Contact struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type OrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	var out OrderResponse
	err := c.do(ctx, http.MethodPost, "/api/orders", req, &out)
	return out, err
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (OrderResponse, error) {
	var out OrderResponse
	err := c.do(ctx, http.MethodGet, "/api/orders/"+orderID, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set(middleware.HeaderCorrelationID, cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call commerce api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
