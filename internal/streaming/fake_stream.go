// Package streaming adapts complete upstream responses into the two
// streaming shapes SPEC_FULL.md §4.8 calls for: fake streaming (keepalive
// heartbeats over a blocking non-stream call) and the anti-truncation
// continuation loop selected by the `robust-stream/` prefix. True SSE
// passthrough and native-to-OpenAI chunk conversion live in
// internal/translator; this package only handles the two synthetic modes.
package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"gcligateway/internal/constants"
)

// Call performs the blocking non-stream upstream round trip and returns an
// already OpenAI-shaped chat-completion response body.
type Call func(ctx context.Context) ([]byte, error)

// FakeStream emits an initial role-only chunk, a keepalive empty-delta chunk
// every FakeStreamHeartbeatInterval until call completes, then a single
// content chunk with finish_reason=stop, then [DONE]. Adapted from the
// teacher's streaming.ConvertToFakeStream io.Pipe generator, replacing its
// pre-chunked-text splitting with a single shot once the real call returns,
// per SPEC_FULL.md §4.8.
func FakeStream(ctx context.Context, model string, call Call) io.Reader {
	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		writeChunk(pw, model, map[string]interface{}{"role": "assistant"}, nil)

		type result struct {
			body []byte
			err  error
		}
		done := make(chan result, 1)
		go func() {
			body, err := call(ctx)
			done <- result{body, err}
		}()

		ticker := time.NewTicker(constants.FakeStreamHeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writeChunk(pw, model, map[string]interface{}{}, nil)
			case res := <-done:
				if res.err != nil {
					log.Warnf("fake stream: upstream call failed: %v", res.err)
					writeErrorChunk(pw, res.err)
					pw.Write([]byte("data: [DONE]\n\n"))
					return
				}
				content, _ := extractContent(res.body)
				reason := "stop"
				writeChunk(pw, model, map[string]interface{}{"content": content}, &reason)
				pw.Write([]byte("data: [DONE]\n\n"))
				return
			}
		}
	}()

	return pr
}

func extractContent(body []byte) (content, finishReason string) {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", ""
	}
	return parsed.Choices[0].Message.Content, parsed.Choices[0].FinishReason
}

func writeChunk(w io.Writer, model string, delta map[string]interface{}, finishReason *string) {
	chunk := map[string]interface{}{
		"id":      fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano()),
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   model,
		"choices": []map[string]interface{}{
			{"index": 0, "delta": delta, "finish_reason": finishReasonOrNil(finishReason)},
		},
	}
	b, _ := json.Marshal(chunk)
	w.Write([]byte("data: "))
	w.Write(b)
	w.Write([]byte("\n\n"))
}

func finishReasonOrNil(reason *string) interface{} {
	if reason == nil {
		return nil
	}
	return *reason
}

func writeErrorChunk(w io.Writer, err error) {
	errChunk, _ := json.Marshal(map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"type":    "server_error",
		},
	})
	w.Write([]byte("data: "))
	w.Write(errChunk)
	w.Write([]byte("\n\n"))
}
