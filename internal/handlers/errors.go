package handlers

import (
	"errors"
	"net/http"

	"responder/internal/commerce"
	"responder/internal/llm"
	"responder/internal/models"
	"responder/internal/triage"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// statusFor maps pipeline and collaborator errors onto HTTP status codes
func statusFor(err error) int {
	var ruleErr *triage.RuleError
	var upstream *commerce.UpstreamError

	switch {
	case errors.As(err, &ruleErr),
		errors.Is(err, triage.ErrInvalidInput),
		errors.Is(err, triage.ErrNoRows),
		errors.Is(err, commerce.ErrInvalidTag):
		return http.StatusBadRequest
	case errors.Is(err, triage.ErrMailAccountNotLinked):
		return http.StatusForbidden
	case errors.Is(err, triage.ErrNotFound),
		errors.Is(err, triage.ErrNoConversations),
		errors.Is(err, commerce.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrNotConfigured),
		errors.Is(err, commerce.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorJSON writes the standard failure envelope. Internal errors are logged
// with the request and reported with a generic message.
func errorJSON(c echo.Context, err error) error {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("Request failed")
		message = "Internal server error"
	}
	return c.JSON(status, models.APIResponse{Success: false, Error: message})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: message})
}
