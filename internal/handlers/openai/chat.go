package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"gcligateway/internal/dispatcher"
	"gcligateway/internal/handlers/common"
	"gcligateway/internal/models"
	"gcligateway/internal/storage"
	"gcligateway/internal/streaming"
	"gcligateway/internal/translator"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/sjson"
)

// ChatCompletions handles POST /v1/chat/completions: translate the OpenAI
// request to native "contents" JSON, run it through the Dispatcher, and
// translate the (possibly streamed) native response back to OpenAI shape.
// Grounded on the teacher's openai_chat.go/chat_request.go/chat_stream.go
// split, collapsed into one handler since this gateway has a single
// Dispatcher entry point instead of a routing-strategy/client-cache pair.
func (h *Handler) ChatCompletions(c *gin.Context) {
	rawJSON, err := io.ReadAll(c.Request.Body)
	if err != nil {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	var req struct {
		Model  string `json:"model"`
		Stream bool   `json:"stream"`
	}
	if err := json.Unmarshal(rawJSON, &req); err != nil {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid JSON body: "+err.Error())
		return
	}
	if req.Model == "" {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "missing model")
		return
	}

	parsed := models.Parse(req.Model)

	nativeBody := translator.OpenAIToNativeRequest(parsed.BaseModel, rawJSON, req.Stream)
	normalized := translator.Normalize(nativeBody, parsed.Variant, parsed.BaseModel)

	base := dispatcher.Params{
		UserID:    common.UserID(c),
		Admin:     common.IsAdmin(c),
		Variant:   storage.Variant(parsed.Variant),
		BaseModel: parsed.BaseModel,
		Endpoint:  "/v1/chat/completions",
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	ctx := c.Request.Context()

	if !req.Stream {
		h.completeChat(c, ctx, base, normalized)
		return
	}

	switch parsed.StreamMode {
	case models.StreamFake:
		h.fakeStreamChat(c, ctx, base, normalized, parsed.BaseModel)
	case models.StreamRobust:
		h.robustStreamChat(c, ctx, base, normalized, parsed.BaseModel)
	default:
		h.nativeStreamChat(c, ctx, base, normalized, parsed.BaseModel)
	}
}

func (h *Handler) dispatch(ctx context.Context, base dispatcher.Params, body []byte, stream bool) (*dispatcher.Outcome, int64, error) {
	p := base
	p.Body = body
	p.Stream = stream
	return h.Dispatcher.Dispatch(ctx, p)
}

func (h *Handler) completeChat(c *gin.Context, ctx context.Context, base dispatcher.Params, body []byte) {
	outcome, _, err := h.dispatch(ctx, base, body, false)
	if err != nil {
		common.AbortWithDispatchError(c, err)
		return
	}
	defer outcome.Response.Body.Close()

	native, err := io.ReadAll(outcome.Response.Body)
	if err != nil {
		common.AbortWithError(c, http.StatusBadGateway, "upstream_error", "failed to read upstream response")
		return
	}

	openaiResp, err := translator.NativeToOpenAIResponse(ctx, base.BaseModel, native)
	if err != nil {
		common.AbortWithError(c, http.StatusBadGateway, "upstream_error", "failed to translate upstream response")
		return
	}
	c.Data(http.StatusOK, "application/json", openaiResp)
}

func (h *Handler) nativeStreamChat(c *gin.Context, ctx context.Context, base dispatcher.Params, body []byte, model string) {
	start := time.Now()
	outcome, logID, err := h.dispatch(ctx, base, body, true)
	if err != nil {
		common.AbortWithDispatchError(c, err)
		return
	}

	reader, terr := translator.NativeToOpenAIStream(ctx, model, outcome.Response.Body)
	if terr != nil {
		outcome.Response.Body.Close()
		common.AbortWithError(c, http.StatusBadGateway, "upstream_error", "failed to translate upstream stream")
		return
	}

	common.StreamReader(c, reader)
	outcome.Response.Body.Close()
	h.Dispatcher.FinalizeStream(ctx, logID, start, outcome.Response.StatusCode, outcome.CredentialID)
}

func (h *Handler) fakeStreamChat(c *gin.Context, ctx context.Context, base dispatcher.Params, body []byte, model string) {
	call := func(ctx context.Context) ([]byte, error) {
		outcome, _, err := h.dispatch(ctx, base, body, false)
		if err != nil {
			return nil, err
		}
		defer outcome.Response.Body.Close()
		native, err := io.ReadAll(outcome.Response.Body)
		if err != nil {
			return nil, err
		}
		return translator.NativeToOpenAIResponse(ctx, model, native)
	}
	common.StreamReader(c, streaming.FakeStream(ctx, model, call))
}

func (h *Handler) robustStreamChat(c *gin.Context, ctx context.Context, base dispatcher.Params, body []byte, model string) {
	continuation := func(ctx context.Context, prior string, attempt int) ([]byte, error) {
		attemptBody := body
		if attempt > 0 {
			attemptBody, _ = sjson.SetBytes(attemptBody, "contents.-1", map[string]interface{}{
				"role":  "model",
				"parts": []interface{}{map[string]interface{}{"text": prior}},
			})
			attemptBody, _ = sjson.SetBytes(attemptBody, "contents.-1", map[string]interface{}{
				"role":  "user",
				"parts": []interface{}{map[string]interface{}{"text": "continue"}},
			})
		}
		outcome, _, err := h.dispatch(ctx, base, attemptBody, false)
		if err != nil {
			return nil, err
		}
		defer outcome.Response.Body.Close()
		native, err := io.ReadAll(outcome.Response.Body)
		if err != nil {
			return nil, err
		}
		return translator.NativeToOpenAIResponse(ctx, model, native)
	}
	common.StreamReader(c, streaming.AntiTruncate(ctx, model, continuation))
}
