package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"responder/internal/cache"

	"github.com/rs/zerolog"
)

// DefaultShipStationURL is the public ShipStation API
const DefaultShipStationURL = "https://ssapi.shipstation.com"

// ShipStationOrder is the subset of a ShipStation order tagging needs, plus
// the full upstream document
type ShipStationOrder struct {
	OrderID     int64           `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	OrderStatus string          `json:"orderStatus"`
	Raw         json.RawMessage `json:"-"`
}

// TagSnapshot is what gets stored on a conversation after tagging
type TagSnapshot struct {
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OrderStatus string    `json:"orderStatus"`
	TagAdded    string    `json:"tagAdded,omitempty"`
	TagRemoved  string    `json:"tagRemoved,omitempty"`
	TaggedAt    time.Time `json:"taggedAt"`
	TaggedBy    string    `json:"taggedBy"`
}

// ShipStationClient reads and tags orders through the ShipStation API
type ShipStationClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	cache      *cache.Cache[*ShipStationOrder]
	ttl        time.Duration
	logger     zerolog.Logger
}

// NewShipStationClient creates a client using basic auth
func NewShipStationClient(baseURL, apiKey, apiSecret string, ttl time.Duration, logger zerolog.Logger) *ShipStationClient {
	if baseURL == "" {
		baseURL = DefaultShipStationURL
	}
	return &ShipStationClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: defaultHTTPClient(),
		cache:      cache.New[*ShipStationOrder](),
		ttl:        ttl,
		logger:     logger.With().Str("component", "shipstation").Logger(),
	}
}

// Configured reports whether credentials are present
func (c *ShipStationClient) Configured() bool {
	return c != nil && c.apiKey != "" && c.apiSecret != ""
}

func (c *ShipStationClient) newRequest(method, path string, body interface{}) (*http.Request, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// LookupOrder returns the first order matching orderNumber
func (c *ShipStationClient) LookupOrder(ctx context.Context, orderNumber string) (*ShipStationOrder, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	orderNumber = strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")
	return c.cache.GetOrLoad(ctx, orderNumber, c.ttl, func(ctx context.Context) (*ShipStationOrder, error) {
		return c.fetchOrder(ctx, orderNumber)
	})
}

func (c *ShipStationClient) fetchOrder(ctx context.Context, orderNumber string) (*ShipStationOrder, error) {
	req, err := c.newRequest(http.MethodGet, "/orders?orderNumber="+url.QueryEscape(orderNumber), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := doJSON(ctx, c.httpClient, "shipstation", req, &payload); err != nil {
		return nil, err
	}
	if len(payload.Orders) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
	}

	order := &ShipStationOrder{Raw: payload.Orders[0]}
	if err := json.Unmarshal(payload.Orders[0], order); err != nil {
		return nil, fmt.Errorf("failed to decode shipstation order: %w", err)
	}
	return order, nil
}

// AddTag tags the order with tag
func (c *ShipStationClient) AddTag(ctx context.Context, orderNumber string, tag OrderTag) (*ShipStationOrder, error) {
	return c.changeTag(ctx, "/orders/addtag", orderNumber, tag)
}

// RemoveTag removes tag from the order
func (c *ShipStationClient) RemoveTag(ctx context.Context, orderNumber string, tag OrderTag) (*ShipStationOrder, error) {
	return c.changeTag(ctx, "/orders/removetag", orderNumber, tag)
}

func (c *ShipStationClient) changeTag(ctx context.Context, path, orderNumber string, tag OrderTag) (*ShipStationOrder, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	orderNumber = strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")

	// Tag changes read fresh state rather than a cached snapshot
	order, err := c.fetchOrder(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(http.MethodPost, path, map[string]interface{}{
		"orderId": order.OrderID,
		"tagId":   nil,
		"tagName": string(tag),
	})
	if err != nil {
		return nil, err
	}
	if err := doJSON(ctx, c.httpClient, "shipstation", req, nil); err != nil {
		return nil, err
	}

	c.cache.Delete(orderNumber)
	c.logger.Info().
		Str("order_number", orderNumber).
		Int64("order_id", order.OrderID).
		Str("tag", string(tag)).
		Str("op", strings.TrimPrefix(path, "/orders/")).
		Msg("ShipStation tag updated")

	return order, nil
}
