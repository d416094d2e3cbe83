package openai

import (
	"net/http"
	"time"

	"gcligateway/internal/models"
	"github.com/gin-gonic/gin"
)

// ListModels serves GET /v1/models: the variant-prefixed catalog described
// in SPEC_FULL.md §6, grounded on the teacher's openai_models.go shape
// (id/object/owned_by/created envelope) without its dynamic
// registry/DisabledModels config surface, which this gateway doesn't carry.
func (h *Handler) ListModels(c *gin.Context) {
	ids := models.ExpandVariants(models.BaseModels())
	items := make([]gin.H, 0, len(ids))
	now := time.Now().Unix()
	for _, id := range ids {
		items = append(items, gin.H{
			"id":       id,
			"object":   "model",
			"created":  now,
			"owned_by": "gcligateway",
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": items})
}
