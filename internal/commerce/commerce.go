// Package commerce looks up orders in Shopify and ShipStation and tags
// fulfillment orders.
package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrOrderNotFound is returned when the upstream has no order with that number
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotConfigured is returned when credentials are missing
	ErrNotConfigured = errors.New("commerce integration not configured")
	// ErrInvalidTag is returned for tags outside OrderTags
	ErrInvalidTag = errors.New("invalid tag")
)

// OrderTag is a fulfillment tag operators may set on an order
type OrderTag string

const (
	TagHold     OrderTag = "HOLD"
	TagPriority OrderTag = "PRIORITY"
	TagUrgent   OrderTag = "URGENT"
	TagReview   OrderTag = "REVIEW"
)

// OrderTags lists the accepted tags
var OrderTags = []OrderTag{TagHold, TagPriority, TagUrgent, TagReview}

// ParseOrderTag accepts a tag in any case
func ParseOrderTag(s string) (OrderTag, error) {
	upper := OrderTag(strings.ToUpper(strings.TrimSpace(s)))
	for _, t := range OrderTags {
		if t == upper {
			return t, nil
		}
	}
	names := make([]string, len(OrderTags))
	for i, t := range OrderTags {
		names[i] = string(t)
	}
	return "", fmt.Errorf("%w %q: must be one of %s", ErrInvalidTag, s, strings.Join(names, ", "))
}

// UpstreamError carries a non-2xx response from a collaborator
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// doJSON sends req and decodes a 2xx JSON body into out when out is non-nil
func doJSON(ctx context.Context, client *http.Client, service string, req *http.Request, out interface{}) error {
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Service: service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	return nil
}
