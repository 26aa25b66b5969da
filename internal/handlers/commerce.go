package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"responder/internal/audit"
	"responder/internal/auth"
	"responder/internal/commerce"
	"responder/internal/models"
	"responder/internal/triage"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const (
	sourceShopify     = "shopify"
	sourceShipStation = "shipstation"
)

// ShopifyOrderHandler looks up an order and optionally stores it on a conversation
// @Summary Shopify order lookup
// @Tags commerce
// @Produce json
// @Param orderNumber query string true "Order number, with or without #"
// @Param emailId query string false "Conversation to attach the order to"
// @Success 200 {object} models.OrderResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/shopify [get]
func ShopifyOrderHandler(shopify *commerce.ShopifyClient, store triage.Store, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		orderNumber := c.QueryParam("orderNumber")
		if orderNumber == "" {
			return badRequest(c, "orderNumber is required")
		}

		order, err := shopify.LookupOrder(c.Request().Context(), orderNumber)
		if err != nil {
			return errorJSON(c, err)
		}

		emailID := c.QueryParam("emailId")
		attachOrder(c, store, emailID, sourceShopify, order)
		auditService.Record(c.Request().Context(), auth.UserID(c), audit.EventOrderLookup, emailID, map[string]interface{}{
			"source":       sourceShopify,
			"order_number": orderNumber,
		})

		return c.JSON(http.StatusOK, models.OrderResponse{Success: true, Order: order})
	}
}

// ShipStationOrderHandler looks up a fulfillment order
// @Summary ShipStation order lookup
// @Tags commerce
// @Produce json
// @Param orderNumber query string true "Order number"
// @Param emailId query string false "Conversation to attach the order to"
// @Success 200 {object} models.OrderResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/shipstation [get]
func ShipStationOrderHandler(shipstation *commerce.ShipStationClient, store triage.Store, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		orderNumber := c.QueryParam("orderNumber")
		if orderNumber == "" {
			return badRequest(c, "orderNumber is required")
		}

		order, err := shipstation.LookupOrder(c.Request().Context(), orderNumber)
		if err != nil {
			return errorJSON(c, err)
		}

		emailID := c.QueryParam("emailId")
		attachOrder(c, store, emailID, sourceShipStation, order.Raw)
		auditService.Record(c.Request().Context(), auth.UserID(c), audit.EventOrderLookup, emailID, map[string]interface{}{
			"source":       sourceShipStation,
			"order_number": orderNumber,
		})

		return c.JSON(http.StatusOK, models.OrderResponse{Success: true, Order: order.Raw})
	}
}

// AddOrderTagHandler tags a ShipStation order
// @Summary Tag order
// @Tags commerce
// @Accept json
// @Produce json
// @Param request body models.TagRequest true "Order and tag"
// @Success 200 {object} models.OrderResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/shipstation/tag [post]
func AddOrderTagHandler(shipstation *commerce.ShipStationClient, store triage.Store, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.TagRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		return changeOrderTag(c, shipstation, store, auditService, req, true)
	}
}

// RemoveOrderTagHandler removes a tag from a ShipStation order
// @Summary Untag order
// @Tags commerce
// @Produce json
// @Param orderNumber query string true "Order number"
// @Param tag query string true "Tag to remove"
// @Param emailId query string false "Conversation to attach the snapshot to"
// @Success 200 {object} models.OrderResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/email-responder/shipstation/tag [delete]
func RemoveOrderTagHandler(shipstation *commerce.ShipStationClient, store triage.Store, auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := models.TagRequest{
			OrderNumber: c.QueryParam("orderNumber"),
			Tag:         c.QueryParam("tag"),
			EmailID:     c.QueryParam("emailId"),
		}
		return changeOrderTag(c, shipstation, store, auditService, req, false)
	}
}

func changeOrderTag(c echo.Context, shipstation *commerce.ShipStationClient, store triage.Store, auditService *audit.Service, req models.TagRequest, add bool) error {
	if req.OrderNumber == "" || req.Tag == "" {
		return badRequest(c, "orderNumber and tag are required")
	}
	tag, err := commerce.ParseOrderTag(req.Tag)
	if err != nil {
		return errorJSON(c, err)
	}

	ctx := c.Request().Context()
	userID := auth.UserID(c)

	var order *commerce.ShipStationOrder
	eventType := audit.EventTag
	if add {
		order, err = shipstation.AddTag(ctx, req.OrderNumber, tag)
	} else {
		order, err = shipstation.RemoveTag(ctx, req.OrderNumber, tag)
		eventType = audit.EventUntag
	}
	if err != nil {
		return errorJSON(c, err)
	}

	snapshot := commerce.TagSnapshot{
		OrderID:     order.OrderID,
		OrderNumber: order.OrderNumber,
		OrderStatus: order.OrderStatus,
		TaggedAt:    time.Now().UTC(),
		TaggedBy:    userID,
	}
	if add {
		snapshot.TagAdded = string(tag)
	} else {
		snapshot.TagRemoved = string(tag)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errorJSON(c, err)
	}
	attachOrder(c, store, req.EmailID, sourceShipStation, data)

	auditService.Record(ctx, userID, eventType, req.EmailID, map[string]interface{}{
		"order_number": req.OrderNumber,
		"order_id":     order.OrderID,
		"tag":          string(tag),
	})

	return c.JSON(http.StatusOK, models.OrderResponse{Success: true, Order: snapshot})
}

// attachOrder stores an order snapshot on the conversation when one was named.
// A failed write is logged; the lookup result is still returned.
func attachOrder(c echo.Context, store triage.Store, emailID, source string, data []byte) {
	if emailID == "" || len(data) == 0 {
		return
	}
	if err := store.SaveOrderData(c.Request().Context(), auth.UserID(c), emailID, source, data); err != nil {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).
			Str("email_id", emailID).
			Str("source", source).
			Msg("Failed to store order data on conversation")
	}
}
