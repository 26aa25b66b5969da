package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderTag(t *testing.T) {
	tests := []struct {
		in      string
		want    OrderTag
		wantErr bool
	}{
		{in: "hold", want: TagHold},
		{in: " Priority ", want: TagPriority},
		{in: "URGENT", want: TagUrgent},
		{in: "review", want: TagReview},
		{in: "vip", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderTag(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTag)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShopifyClient_LookupOrder(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/admin/api/2024-10/orders.json", r.URL.Path)
		assert.Equal(t, "shpat_123", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "any", r.URL.Query().Get("status"))

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("name") == "1001" {
			_, _ = w.Write([]byte(`{"orders":[{"id":42,"name":"#1001","financial_status":"paid"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"orders":[]}`))
	}))
	defer server.Close()

	client := NewShopifyClient(server.URL, "shpat_123", "", time.Minute, zerolog.Nop())

	order, err := client.LookupOrder(context.Background(), "#1001")
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(order, &decoded))
	assert.Equal(t, "#1001", decoded["name"])

	_, err = client.LookupOrder(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = client.LookupOrder(context.Background(), "9999")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestShopifyClient_NotConfigured(t *testing.T) {
	client := NewShopifyClient("", "", "", time.Minute, zerolog.Nop())
	assert.False(t, client.Configured())
	_, err := client.LookupOrder(context.Background(), "1001")
	assert.ErrorIs(t, err, ErrNotConfigured)

	assert.Equal(t, "https://shop.myshopify.com", NewShopifyClient("shop.myshopify.com/", "t", "", 0, zerolog.Nop()).baseURL)
}

func TestShopifyClient_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
	}))
	defer server.Close()

	client := NewShopifyClient(server.URL, "bad", "2024-10", time.Minute, zerolog.Nop())
	_, err := client.LookupOrder(context.Background(), "1001")

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "Invalid API key")
}

func shipStationServer(t *testing.T, tagCalls *[]map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/orders":
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("orderNumber") == "1001" {
				_, _ = w.Write([]byte(`{"orders":[{"orderId":555,"orderNumber":"1001","orderStatus":"awaiting_shipment","carrierCode":"ups"}],"total":1}`))
				return
			}
			_, _ = w.Write([]byte(`{"orders":[],"total":0}`))
		case r.Method == http.MethodPost && (r.URL.Path == "/orders/addtag" || r.URL.Path == "/orders/removetag"):
			var body map[string]interface{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body["path"] = r.URL.Path
			*tagCalls = append(*tagCalls, body)
			_, _ = w.Write([]byte(`{"success":true,"message":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestShipStationClient_LookupOrder(t *testing.T) {
	var calls []map[string]interface{}
	server := shipStationServer(t, &calls)
	defer server.Close()

	client := NewShipStationClient(server.URL, "key", "secret", time.Minute, zerolog.Nop())

	order, err := client.LookupOrder(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, int64(555), order.OrderID)
	assert.Equal(t, "awaiting_shipment", order.OrderStatus)
	assert.Contains(t, string(order.Raw), `"carrierCode":"ups"`)

	_, err = client.LookupOrder(context.Background(), "2002")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = NewShipStationClient(server.URL, "key", "wrong", time.Minute, zerolog.Nop()).LookupOrder(context.Background(), "1001")
	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
}

func TestShipStationClient_Tags(t *testing.T) {
	var calls []map[string]interface{}
	server := shipStationServer(t, &calls)
	defer server.Close()

	client := NewShipStationClient(server.URL, "key", "secret", time.Minute, zerolog.Nop())

	order, err := client.AddTag(context.Background(), "#1001", TagHold)
	require.NoError(t, err)
	assert.Equal(t, int64(555), order.OrderID)

	_, err = client.RemoveTag(context.Background(), "1001", TagHold)
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, "/orders/addtag", calls[0]["path"])
	assert.Equal(t, float64(555), calls[0]["orderId"])
	assert.Equal(t, "HOLD", calls[0]["tagName"])
	assert.Equal(t, "/orders/removetag", calls[1]["path"])

	_, err = client.AddTag(context.Background(), "2002", TagUrgent)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = NewShipStationClient("", "", "", 0, zerolog.Nop()).AddTag(context.Background(), "1001", TagHold)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
