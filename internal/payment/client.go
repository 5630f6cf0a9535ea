package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/middleware"
)

// Client requests hosted checkout sessions from the payment provider.
// The provider's wire format beyond this call is not our concern: we
// only consume the session URL and redirect.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	u, err := url.Parse(baseURL)
	if err != nil {
		// Fail fast: config error
		panic(fmt.Sprintf("invalid payment api base url %q: %v", baseURL, err))
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: u, http: httpClient}
}

// SessionError is a failure the provider reported itself.
type SessionError struct {
	Code    int
	Message string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("payment provider: %d %s", e.Code, e.Message)
}

type sessionRequest struct {
	OrderID    string `json:"orderId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type sessionResponse struct {
	SessionURL string `json:"sessionUrl"`
}

// CreateCheckoutSession opens a provider-hosted session scoped to the
// order, carrying the explicit success/cancel destinations the provider
// will call back on.
func (c *Client) CreateCheckoutSession(ctx context.Context, orderID, successURL, cancelURL string) (string, error) {
	body, err := json.Marshal(sessionRequest{OrderID: orderID, SuccessURL: successURL, CancelURL: cancelURL})
	if err != nil {
		return "", fmt.Errorf("marshal session request: %w", err)
	}

	u := c.baseURL.ResolveReference(&url.URL{Path: "/api/checkout-sessions"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if cid := middleware.GetCorrelationID(ctx); cid != "" {
		req.Header.Set(middleware.HeaderCorrelationID, cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call payment provider: %w", err)
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
		return "", &SessionError{Code: resp.StatusCode, Message: payload.Error}
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if out.SessionURL == "" {
		return "", &SessionError{Code: resp.StatusCode, Message: "provider returned no session url"}
	}
	return out.SessionURL, nil
}
