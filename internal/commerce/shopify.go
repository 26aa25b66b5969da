package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"responder/internal/cache"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// ShopifyClient reads orders from the Shopify Admin REST API
type ShopifyClient struct {
	baseURL string
	token   string
	api     *goshopify.Client
	cache   *cache.Cache[json.RawMessage]
	ttl     time.Duration
	logger  zerolog.Logger
}

type orderQuery struct {
	Name   string `url:"name"`
	Status string `url:"status"`
}

// storeTransport sends every request to the configured store host, which may
// be a custom domain rather than <shop>.myshopify.com
type storeTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *storeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.base.Scheme
	req.URL.Host = t.base.Host
	req.Host = t.base.Host
	return t.next.RoundTrip(req)
}

// NewShopifyClient creates a client. storeURL may be a bare shop domain or a
// full URL.
func NewShopifyClient(storeURL, token, apiVersion string, ttl time.Duration, logger zerolog.Logger) *ShopifyClient {
	base := strings.TrimRight(strings.TrimSpace(storeURL), "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	if apiVersion == "" {
		apiVersion = "2024-10"
	}

	c := &ShopifyClient{
		baseURL: base,
		token:   token,
		cache:   cache.New[json.RawMessage](),
		ttl:     ttl,
		logger:  logger.With().Str("component", "shopify").Logger(),
	}
	if base == "" || token == "" {
		return c
	}

	api, err := newShopifyAPI(base, token, apiVersion)
	if err != nil {
		c.logger.Warn().Err(err).Str("store_url", base).Msg("Invalid Shopify store URL")
		return c
	}
	c.api = api
	return c
}

func newShopifyAPI(base, token, apiVersion string) (*goshopify.Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("store URL %q has no host", base)
	}

	httpClient := defaultHTTPClient()
	httpClient.Transport = &storeTransport{base: u, next: http.DefaultTransport}

	shopName := strings.SplitN(u.Hostname(), ".", 2)[0]
	return goshopify.NewClient(goshopify.App{}, shopName, token,
		goshopify.WithVersion(apiVersion),
		goshopify.WithHTTPClient(httpClient),
		goshopify.WithRetry(3),
	)
}

// Configured reports whether credentials are present
func (c *ShopifyClient) Configured() bool {
	return c != nil && c.api != nil
}

// LookupOrder returns the order named orderNumber as JSON
func (c *ShopifyClient) LookupOrder(ctx context.Context, orderNumber string) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	orderNumber = strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")

	return c.cache.GetOrLoad(ctx, orderNumber, c.ttl, func(ctx context.Context) (json.RawMessage, error) {
		orders, err := c.api.Order.List(ctx, orderQuery{Name: orderNumber, Status: "any"})
		if err != nil {
			return nil, shopifyError(err)
		}
		if len(orders) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderNumber)
		}

		order, err := json.Marshal(orders[0])
		if err != nil {
			return nil, fmt.Errorf("failed to encode shopify order: %w", err)
		}

		c.logger.Debug().Str("order_number", orderNumber).Msg("Fetched Shopify order")
		return order, nil
	})
}

func shopifyError(err error) error {
	var rerr goshopify.ResponseError
	if errors.As(err, &rerr) && rerr.Status != 0 {
		return &UpstreamError{Service: "shopify", StatusCode: rerr.Status, Body: rerr.Error()}
	}
	return fmt.Errorf("shopify request failed: %w", err)
}
