package gemini

import (
	"io"
	"net/http"

	"gcligateway/internal/dispatcher"
	"gcligateway/internal/handlers/common"
	"gcligateway/internal/models"
	"gcligateway/internal/storage"
	"gcligateway/internal/translator"
	"github.com/gin-gonic/gin"
)

// GenerateContent handles POST /v1beta/models/{model}:generateContent: the
// caller's body is already native-format JSON, so only per-variant
// normalisation runs before dispatch; the upstream response is passed
// straight through without any envelope unwrapping (confirmed against
// original_source's antigravity_client.py, which returns response.json()
// directly — the upstream never wraps the body under a "response" key).
func (h *Handler) GenerateContent(c *gin.Context) {
	rawJSON, err := io.ReadAll(c.Request.Body)
	if err != nil {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	modelName := c.Param("model")
	parsed := models.Parse(modelName)
	normalized := translator.Normalize(rawJSON, parsed.Variant, parsed.BaseModel)

	outcome, _, err := h.Dispatcher.Dispatch(c.Request.Context(), dispatcher.Params{
		UserID:    common.UserID(c),
		Admin:     common.IsAdmin(c),
		Variant:   storage.Variant(parsed.Variant),
		BaseModel: parsed.BaseModel,
		Body:      normalized,
		Endpoint:  "/v1beta/models/:model:generateContent",
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Stream:    false,
	})
	if err != nil {
		common.AbortWithDispatchError(c, err)
		return
	}
	defer outcome.Response.Body.Close()

	body, err := io.ReadAll(outcome.Response.Body)
	if err != nil {
		common.AbortWithError(c, http.StatusBadGateway, "upstream_error", "failed to read upstream response")
		return
	}
	c.Data(outcome.Response.StatusCode, "application/json", body)
}
