package translator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"gcligateway/internal/constants"
)

func init() {
	Register(FormatGemini, FormatOpenAI, TranslatorConfig{
		ResponseTransform: NativeToOpenAIResponse,
		StreamTransform:   NativeToOpenAIStream,
	})
}

// ImageSink persists an inlineData part and returns a URL pointing at the
// stored bytes, so native image output can be emitted as markdown.
type ImageSink interface {
	Store(ctx context.Context, mimeType string, data []byte) (url string, err error)
}

// NativeToOpenAIResponse converts a single non-streaming native response to
// an OpenAI chat-completion response without an ImageSink, so inlineData
// parts are dropped; NativeToOpenAIResponseWithSink is the sink-aware variant.
func NativeToOpenAIResponse(ctx context.Context, model string, responseBody []byte) ([]byte, error) {
	return nativeToOpenAIResponse(ctx, model, responseBody, nil)
}

// NativeToOpenAIResponseWithSink is the ImageSink-aware variant used by
// callers that want inline image data persisted rather than dropped.
func NativeToOpenAIResponseWithSink(ctx context.Context, model string, responseBody []byte, sink ImageSink) ([]byte, error) {
	return nativeToOpenAIResponse(ctx, model, responseBody, sink)
}

func nativeToOpenAIResponse(ctx context.Context, model string, responseBody []byte, sink ImageSink) ([]byte, error) {
	result := gjson.ParseBytes(responseBody)

	if errMsg := result.Get("error"); errMsg.Exists() {
		return responseBody, nil
	}
	candidates := result.Get("candidates")
	if !candidates.Exists() {
		return responseBody, nil
	}

	var choices []map[string]interface{}
	var promptTokens, completionTokens int64

	for idx, candidate := range candidates.Array() {
		parts := candidate.Get("content.parts").Array()

		var text, reasoning strings.Builder
		var toolCalls []map[string]interface{}
		hasReasoning := false

		for _, part := range parts {
			if thought := part.Get("thought"); thought.Exists() && thought.Bool() {
				if t := part.Get("text"); t.Exists() {
					reasoning.WriteString(t.String())
					hasReasoning = true
				}
				continue
			}
			if inline := part.Get("inlineData"); inline.Exists() && sink != nil {
				mimeType := inline.Get("mimeType").String()
				data := []byte(inline.Get("data").String())
				if url, err := sink.Store(ctx, mimeType, data); err == nil {
					text.WriteString(fmt.Sprintf("![image](%s)\n", url))
				}
				continue
			}
			if t := part.Get("text"); t.Exists() {
				text.WriteString(t.String())
			}
			if fnCall := part.Get("functionCall"); fnCall.Exists() {
				toolCalls = append(toolCalls, buildToolCall(fnCall, len(toolCalls)))
			}
		}

		message := map[string]interface{}{"role": "assistant", "content": text.String()}
		if hasReasoning {
			message["reasoning_content"] = reasoning.String()
		}
		if len(toolCalls) > 0 {
			message["tool_calls"] = toolCalls
		}

		choices = append(choices, map[string]interface{}{
			"index":         idx,
			"message":       message,
			"finish_reason": mapFinishReason(candidate.Get("finishReason").String(), len(toolCalls) > 0),
		})
	}

	if usage := result.Get("usageMetadata"); usage.Exists() {
		promptTokens = usage.Get("promptTokenCount").Int()
		completionTokens = usage.Get("candidatesTokenCount").Int()
	}

	response := map[string]interface{}{
		"id":      fmt.Sprintf("chatcmpl-%d", time.Now().Unix()),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": choices,
		"usage": map[string]interface{}{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	}
	return json.Marshal(response)
}

func buildToolCall(fnCall gjson.Result, index int) map[string]interface{} {
	name := fnCall.Get("name").String()
	args := fnCall.Get("args")

	var argsJSON []byte
	switch {
	case args.IsObject() || args.IsArray():
		argsJSON, _ = json.Marshal(args.Value())
	case args.Exists():
		argsJSON = []byte(args.Raw)
	default:
		argsJSON = []byte("{}")
	}

	return map[string]interface{}{
		"id":   fmt.Sprintf("call_%s_%d", name, index),
		"type": "function",
		"function": map[string]interface{}{
			"name":      name,
			"arguments": string(argsJSON),
		},
	}
}

func mapFinishReason(native string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch native {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

// NativeToOpenAIStream converts a native `data: ` SSE stream into OpenAI
// chat-completion-chunk SSE, adapted from the teacher's
// GeminiToOpenAIStream io.Pipe generator.
func NativeToOpenAIStream(ctx context.Context, model string, reader io.Reader) (io.Reader, error) {
	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, constants.SSEScannerInitialBufferSize), constants.SSEScannerMaxBufferSize)

		chunkIndex := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			jsonData := bytes.TrimPrefix(line, []byte("data: "))
			if bytes.Equal(jsonData, []byte("[DONE]")) {
				pw.Write([]byte("data: [DONE]\n\n"))
				return
			}

			result := gjson.ParseBytes(jsonData)
			if errMsg := result.Get("error"); errMsg.Exists() {
				errorChunk, _ := json.Marshal(map[string]interface{}{
					"error": map[string]interface{}{
						"message": errMsg.Get("message").String(),
						"type":    "server_error",
					},
				})
				pw.Write([]byte("data: "))
				pw.Write(errorChunk)
				pw.Write([]byte("\n\n"))
				return
			}

			candidates := result.Get("candidates")
			if !candidates.Exists() {
				continue
			}

			for _, candidate := range candidates.Array() {
				delta := map[string]interface{}{}
				if chunkIndex == 0 {
					delta["role"] = "assistant"
				}

				var finishReason *string
				for _, part := range candidate.Get("content.parts").Array() {
					if thought := part.Get("thought"); thought.Exists() && thought.Bool() {
						if t := part.Get("text"); t.Exists() {
							delta["reasoning_content"] = t.String()
						}
						continue
					}
					if t := part.Get("text"); t.Exists() {
						delta["content"] = t.String()
					}
					if fnCall := part.Get("functionCall"); fnCall.Exists() {
						delta["tool_calls"] = []map[string]interface{}{
							withIndex(buildToolCall(fnCall, chunkIndex), 0),
						}
					}
				}

				if fr := candidate.Get("finishReason"); fr.Exists() {
					reason := mapFinishReason(fr.String(), false)
					finishReason = &reason
				}

				chunk := map[string]interface{}{
					"id":      fmt.Sprintf("chatcmpl-%d", time.Now().Unix()),
					"object":  "chat.completion.chunk",
					"created": time.Now().Unix(),
					"model":   model,
					"choices": []map[string]interface{}{
						{"index": 0, "delta": delta, "finish_reason": finishReasonValue(finishReason)},
					},
				}

				chunkJSON, _ := json.Marshal(chunk)
				pw.Write([]byte("data: "))
				pw.Write(chunkJSON)
				pw.Write([]byte("\n\n"))
				chunkIndex++
			}
		}
		pw.Write([]byte("data: [DONE]\n\n"))
	}()

	return pr, nil
}

func withIndex(toolCall map[string]interface{}, index int) map[string]interface{} {
	toolCall["index"] = index
	return toolCall
}

func finishReasonValue(reason *string) interface{} {
	if reason == nil {
		return nil
	}
	return *reason
}
