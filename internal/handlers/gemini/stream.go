package gemini

import (
	"io"
	"net/http"
	"time"

	"gcligateway/internal/dispatcher"
	"gcligateway/internal/handlers/common"
	"gcligateway/internal/models"
	"gcligateway/internal/storage"
	"gcligateway/internal/translator"
	"github.com/gin-gonic/gin"
)

// StreamGenerateContent handles POST /v1beta/models/{model}:streamGenerateContent:
// true SSE passthrough of the upstream's native `data: ` frames.
func (h *Handler) StreamGenerateContent(c *gin.Context) {
	rawJSON, err := io.ReadAll(c.Request.Body)
	if err != nil {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	modelName := c.Param("model")
	parsed := models.Parse(modelName)
	normalized := translator.Normalize(rawJSON, parsed.Variant, parsed.BaseModel)

	start := time.Now()
	ctx := c.Request.Context()
	outcome, logID, err := h.Dispatcher.Dispatch(ctx, dispatcher.Params{
		UserID:    common.UserID(c),
		Admin:     common.IsAdmin(c),
		Variant:   storage.Variant(parsed.Variant),
		BaseModel: parsed.BaseModel,
		Body:      normalized,
		Endpoint:  "/v1beta/models/:model:streamGenerateContent",
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Stream:    true,
	})
	if err != nil {
		common.AbortWithDispatchError(c, err)
		return
	}

	common.StreamReader(c, outcome.Response.Body)
	outcome.Response.Body.Close()
	h.Dispatcher.FinalizeStream(ctx, logID, start, outcome.Response.StatusCode, outcome.CredentialID)
}
