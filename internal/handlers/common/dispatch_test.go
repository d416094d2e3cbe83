package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gcligateway/internal/dispatcher"
	"gcligateway/internal/quota"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAbort(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	AbortWithDispatchError(c, err)
	return w
}

func TestAbortWithDispatchError_QuotaRejectionMapsTo429(t *testing.T) {
	err := &dispatcher.ErrQuotaRejected{Rejection: &quota.Rejection{Reason: "daily bucket exhausted"}}
	w := runAbort(t, err)

	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "quota_exceeded", body.Error.Type)
	assert.Equal(t, "daily bucket exhausted", body.Error.Message)
}

func TestAbortWithDispatchError_GenericErrorDefaultsTo502(t *testing.T) {
	w := runAbort(t, errors.New("API call failed (retried 3 times): connection reset"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAbortWithDispatchError_UpstreamFailedUsesCarriedStatus(t *testing.T) {
	err := &dispatcher.ErrUpstreamFailed{Status: http.StatusNotFound, Message: "model unavailable"}
	w := runAbort(t, err)

	require.Equal(t, http.StatusNotFound, w.Code)

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "model unavailable", body.Error.Message)
}
