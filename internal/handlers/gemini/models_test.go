package gemini

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

func TestListModels_ReturnsNativeEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(nil, func() config.Config { return config.Defaults() })

	r := gin.New()
	r.GET("/v1beta/models", h.ListModels)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1beta/models", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Models []struct {
			Name                       string   `json:"name"`
			BaseModelID                string   `json:"baseModelId"`
			SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Models)
	for _, m := range body.Models {
		assert.Contains(t, m.Name, "models/")
		assert.NotEmpty(t, m.BaseModelID)
		assert.Contains(t, m.SupportedGenerationMethods, "generateContent")
	}
}
