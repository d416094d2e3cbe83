package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestContext(t *testing.T, setup func(req *http.Request)) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	if setup != nil {
		setup(req)
	}
	c.Request = req
	return c
}

func TestExtractAPIKey_BearerTakesPrecedence(t *testing.T) {
	c := newTestContext(t, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer sk-bearer")
		req.Header.Set("x-api-key", "sk-header")
	})
	assert.Equal(t, "sk-bearer", extractAPIKey(c))
}

func TestExtractAPIKey_FallsBackToXAPIKey(t *testing.T) {
	c := newTestContext(t, func(req *http.Request) {
		req.Header.Set("x-api-key", "sk-header")
	})
	assert.Equal(t, "sk-header", extractAPIKey(c))
}

func TestExtractAPIKey_FallsBackToGoogHeader(t *testing.T) {
	c := newTestContext(t, func(req *http.Request) {
		req.Header.Set("x-goog-api-key", "sk-goog")
	})
	assert.Equal(t, "sk-goog", extractAPIKey(c))
}

func TestExtractAPIKey_FallsBackToQueryParam(t *testing.T) {
	c := newTestContext(t, func(req *http.Request) {
		q := req.URL.Query()
		q.Set("key", "sk-query")
		req.URL.RawQuery = q.Encode()
	})
	assert.Equal(t, "sk-query", extractAPIKey(c))
}

func TestExtractAPIKey_EmptyWhenNoneProvided(t *testing.T) {
	c := newTestContext(t, nil)
	assert.Equal(t, "", extractAPIKey(c))
}
