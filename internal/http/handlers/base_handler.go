// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"evconnect/internal/modules/agent"
	"evconnect/internal/modules/dispatch"
	"evconnect/internal/modules/location"
	"evconnect/internal/modules/offer"
	"evconnect/internal/modules/servicereq"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the hex request ids and the uuid offer ids we issue.
func isValidID(v string) bool {
	if v == "" || len(v) > 36 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, servicereq.ErrNotFound), errors.Is(err, agent.ErrNotFound), errors.Is(err, offer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrInvalidCoordinates), errors.Is(err, servicereq.ErrBadRequest), errors.Is(err, location.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrNoEligibleAgents):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrOfferExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}
