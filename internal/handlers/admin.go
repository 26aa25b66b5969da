package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"responder/internal/audit"
	"responder/internal/auth"
	"responder/internal/logbuffer"
	"responder/internal/models"

	"github.com/labstack/echo/v4"
)

// LoginHandler handles operator authentication
// @Summary Operator login
// @Description Authenticate and receive a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 401 {object} models.LoginResponse
// @Router /api/auth/login [post]
func LoginHandler(authManager *auth.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.LoginRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, models.LoginResponse{
				Success: false,
				Error:   fmt.Sprintf("Invalid request body: %v", err),
			})
		}

		token, expiresAt, err := authManager.Authenticate(req.Username, req.Password)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, models.LoginResponse{
				Success: false,
				Error:   "Invalid username or password",
			})
		}

		return c.JSON(http.StatusOK, models.LoginResponse{
			Success:   true,
			Token:     token,
			ExpiresAt: expiresAt,
		})
	}
}

// AuditHandler lists the caller's most recent audit events
// @Summary List audit events
// @Tags email-responder
// @Produce json
// @Param limit query int false "Maximum events" default(100)
// @Success 200 {object} models.AuditResponse
// @Security BearerAuth
// @Router /api/email-responder/audit [get]
func AuditHandler(auditService *audit.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := audit.DefaultListLimit
		if l := c.QueryParam("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed <= 0 {
				return badRequest(c, "limit must be a positive integer")
			}
			limit = parsed
		}

		events, err := auditService.List(c.Request().Context(), auth.UserID(c), limit)
		if err != nil {
			return errorJSON(c, err)
		}
		if events == nil {
			events = []models.AuditEvent{}
		}

		return c.JSON(http.StatusOK, models.AuditResponse{Success: true, Events: events})
	}
}

// LogsHandler returns the buffered application logs
// @Summary Recent logs
// @Tags admin
// @Produce json
// @Success 200 {object} models.LogsResponse
// @Security BearerAuth
// @Router /api/admin/logs [get]
func LogsHandler(buffer *logbuffer.Buffer) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries := buffer.Entries()
		return c.JSON(http.StatusOK, models.LogsResponse{
			Success:  true,
			Count:    len(entries),
			Capacity: buffer.Capacity(),
			Logs:     entries,
		})
	}
}

// ClearLogsHandler empties the log buffer
// @Summary Clear logs
// @Tags admin
// @Produce json
// @Success 200 {object} models.APIResponse
// @Security BearerAuth
// @Router /api/admin/logs [delete]
func ClearLogsHandler(buffer *logbuffer.Buffer) echo.HandlerFunc {
	return func(c echo.Context) error {
		buffer.Clear()
		return c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Logs cleared"})
	}
}
