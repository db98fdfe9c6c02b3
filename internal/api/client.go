// Package api implements the client side of the marketplace cart REST
// contract: GET /api/v1/cart, POST /api/v1/cart, DELETE /api/v1/cart/{id}.
// The backend itself is an external system; this package only speaks its
// wire format and attaches bearer credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"storefront-client/internal/domain"
	"storefront-client/internal/session"
)

// Predefined errors for API operations
var (
	ErrUnauthorized = errors.New("api: request rejected, missing or invalid credentials")
)

// APIError carries a non-2xx response back to the caller.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: request failed with status %d: %s", e.StatusCode, e.Message)
}

// AddLineInput is the POST /cart payload: the product/variant reference,
// the quantity, and the denormalized display fields the backend stores
// alongside the line.
type AddLineInput struct {
	ProductID     int64           `json:"product_id"`
	VariantID     *int64          `json:"variant_id,omitempty"`
	Quantity      int             `json:"quantity"`
	ProductName   string          `json:"product_name"`
	Images        []string        `json:"images"`
	UnitPrice     float64         `json:"unit_price"`
	UnitSalePrice *float64        `json:"unit_sale_price,omitempty"`
	Variant       *domain.Variant `json:"variant,omitempty"`
}

// Client is the cart REST API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client for the given API base URL (no trailing slash).
// A nil httpClient falls back to a client with a 15s timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// FetchCart retrieves the authoritative server-side cart for the session.
func (c *Client) FetchCart(ctx context.Context, sess session.Session) ([]domain.CartLine, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/cart", nil)
	if err != nil {
		return nil, fmt.Errorf("api: FetchCart failed to build request: %w", err)
	}
	c.authorize(req, sess)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: FetchCart request failed: %w", err)
	}
	defer res.Body.Close()

	if err := c.checkStatus(res); err != nil {
		return nil, err
	}

	var lines []domain.CartLine
	if err := json.NewDecoder(res.Body).Decode(&lines); err != nil {
		return nil, fmt.Errorf("api: FetchCart failed to decode response: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

// AddLine appends one line to the server-side cart.
func (c *Client) AddLine(ctx context.Context, sess session.Session, input AddLineInput) error {
	body, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("api: AddLine failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/cart", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("api: AddLine failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, sess)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: AddLine request failed: %w", err)
	}
	defer res.Body.Close()

	return c.checkStatus(res)
}

// RemoveLine deletes one line from the server-side cart by its id.
func (c *Client) RemoveLine(ctx context.Context, sess session.Session, lineID int64) error {
	url := c.baseURL + "/api/v1/cart/" + strconv.FormatInt(lineID, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("api: RemoveLine failed to build request: %w", err)
	}
	c.authorize(req, sess)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: RemoveLine request failed: %w", err)
	}
	defer res.Body.Close()

	return c.checkStatus(res)
}

func (c *Client) authorize(req *http.Request, sess session.Session) {
	if sess.IsAuthenticated() {
		req.Header.Set("Authorization", "Bearer "+sess.Token())
	}
}

// checkStatus maps non-2xx responses onto ErrUnauthorized or *APIError,
// reading at most a small slice of the body for the error message.
func (c *Client) checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	if res.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	message := res.Status
	var errBody struct {
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err == nil && json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
		message = errBody.Error
	}
	c.logger.Warn("cart API request failed",
		zap.Int("status", res.StatusCode),
		zap.String("message", message))
	return &APIError{StatusCode: res.StatusCode, Message: message}
}
