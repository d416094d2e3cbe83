package common

import (
	"errors"
	"net/http"

	"gcligateway/internal/dispatcher"
	apperrors "gcligateway/internal/errors"
	"github.com/gin-gonic/gin"
)

// AbortWithDispatchError classifies an error returned by
// dispatcher.Dispatcher.Dispatch and aborts the request with the matching
// HTTP status: quota rejections map to 429; exhausted-retry failures carry
// their last attempted upstream status explicitly via
// dispatcher.ErrUpstreamFailed (so an ErrorMessageRule override can replace
// the message without losing the status); anything else falls back to
// scanning the error text, defaulting to 502.
func AbortWithDispatchError(c *gin.Context, err error) {
	var quotaErr *dispatcher.ErrQuotaRejected
	if errors.As(err, &quotaErr) {
		AbortWithError(c, http.StatusTooManyRequests, "quota_exceeded", quotaErr.Rejection.Reason)
		return
	}

	var upstreamErr *dispatcher.ErrUpstreamFailed
	if errors.As(err, &upstreamErr) {
		AbortWithError(c, upstreamErr.Status, "upstream_error", upstreamErr.Message)
		return
	}

	text := err.Error()
	status := apperrors.ExtractStatus(text, http.StatusBadGateway)
	AbortWithError(c, status, "upstream_error", text)
}
