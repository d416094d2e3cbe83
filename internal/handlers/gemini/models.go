package gemini

import (
	"net/http"

	"gcligateway/internal/models"
	"github.com/gin-gonic/gin"
)

// ListModels serves GET /v1beta/models in the native-format shape, grounded
// on the teacher's gemini/models.go envelope.
func (h *Handler) ListModels(c *gin.Context) {
	ids := models.ExpandVariants(models.BaseModels())
	items := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		items = append(items, gin.H{
			"name":                       "models/" + id,
			"baseModelId":                id,
			"version":                    "001",
			"displayName":                id,
			"description":                "Gateway model: " + id,
			"inputTokenLimit":            1048576,
			"outputTokenLimit":           8192,
			"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent", "countTokens"},
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": items})
}
