package openai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gcligateway/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModels_ReturnsVariantPrefixedCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(nil, func() config.Config { return config.Defaults() })

	r := gin.New()
	r.GET("/v1/models", h.ListModels)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Object string `json:"object"`
		Data   []struct {
			ID      string `json:"id"`
			Object  string `json:"object"`
			OwnedBy string `json:"owned_by"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "list", body.Object)
	assert.NotEmpty(t, body.Data)
	for _, m := range body.Data {
		assert.Equal(t, "model", m.Object)
		assert.Equal(t, "gcligateway", m.OwnedBy)
	}
}
