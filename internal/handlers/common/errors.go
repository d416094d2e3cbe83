// Package common holds the small helpers shared by the OpenAI-compatible and
// native HTTP surfaces: error-envelope serialisation and SSE writing.
// Adapted from the teacher's internal/handlers/common/api_errors.go and
// sse.go, rekeyed onto the already-built internal/httpformat package instead
// of duplicating its path-sniffing logic locally.
package common

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "gcligateway/internal/errors"
	"gcligateway/internal/httpformat"
	"github.com/gin-gonic/gin"
)

// AbortWithAPIError serialises err in the caller's detected wire format and
// aborts the gin context.
func AbortWithAPIError(c *gin.Context, err *apperrors.APIError) {
	if err == nil {
		err = apperrors.New(http.StatusInternalServerError, "server_error", "server_error", "unknown error")
	}

	format := httpformat.DetectFromContext(c)
	payload, marshalErr := err.ToJSON(format)
	if marshalErr != nil {
		c.JSON(safeStatus(err.HTTPStatus), gin.H{
			"error": gin.H{"message": err.Message, "type": err.Type, "code": err.Code},
		})
		c.Abort()
		return
	}

	c.Data(safeStatus(err.HTTPStatus), "application/json", payload)
	c.Abort()
}

// AbortWithError constructs an APIError from plain fields and aborts.
func AbortWithError(c *gin.Context, status int, typ, message string) {
	typ = normalizeType(typ)
	AbortWithAPIError(c, apperrors.New(safeStatus(status), typ, typ, firstNonEmpty(message, "internal error")))
}

// AbortWithUpstreamMapped classifies an upstream failure via
// errors.MapHTTPError and aborts with the mapped error.
func AbortWithUpstreamMapped(c *gin.Context, status int, upstreamBody []byte) {
	AbortWithAPIError(c, apperrors.MapHTTPError(safeStatus(status), upstreamBody))
}

func normalizeType(typ string) string {
	if strings.TrimSpace(typ) == "" {
		return "server_error"
	}
	return typ
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func safeStatus(status int) int {
	if status >= 400 && status <= 599 {
		return status
	}
	return http.StatusInternalServerError
}

// DecodeJSONBody reads and unmarshals the gin request body into dst,
// aborting with a 400 invalid_request_error on failure.
func DecodeJSONBody(c *gin.Context, dst any) bool {
	if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil {
		AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
