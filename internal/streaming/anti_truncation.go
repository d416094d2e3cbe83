package streaming

import (
	"context"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"gcligateway/internal/constants"
)

// ContinuationCall performs one non-stream upstream round trip for the
// `robust-stream/` prefix mode, given the accumulated content from prior
// attempts (empty on the first call). It returns an OpenAI-shaped response
// body whose message.content is the newly generated text only (not
// prior+new) — the caller is expected to fold `prior` into the continuation
// prompt it sends upstream.
type ContinuationCall func(ctx context.Context, priorContent string, attempt int) ([]byte, error)

// AntiTruncate drives the robust-stream continuation loop: it keeps calling
// continuation until the response's finish_reason stops reporting
// truncation (MAX_TOKENS/length) or AntiTruncationMaxAttempts is reached,
// then emits the accumulated content as a single fake-stream response.
// Adapted from the teacher's streaming.WithAntiTruncation loop, with the
// regex-driven antitrunc.Config completeness detector replaced by a direct
// finish_reason check — the only truncation signal SPEC_FULL.md defines.
func AntiTruncate(ctx context.Context, model string, continuation ContinuationCall) io.Reader {
	return FakeStream(ctx, model, func(ctx context.Context) ([]byte, error) {
		var accumulated string
		var lastBody []byte

		for attempt := 0; attempt < constants.AntiTruncationMaxAttempts; attempt++ {
			body, err := continuation(ctx, accumulated, attempt)
			if err != nil {
				return nil, err
			}
			lastBody = body

			content, finishReason := extractContent(body)
			accumulated += content

			if !isTruncated(finishReason) {
				log.Debugf("anti-truncation: response complete after %d attempt(s)", attempt+1)
				break
			}
			if attempt == constants.AntiTruncationMaxAttempts-1 {
				log.Warnf("anti-truncation: max attempts (%d) reached, returning partial content", constants.AntiTruncationMaxAttempts)
				break
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(constants.AntiTruncationRetryDelay):
			}
		}

		return mergedResponse(lastBody, accumulated), nil
	})
}

func isTruncated(finishReason string) bool {
	switch finishReason {
	case "length", "MAX_TOKENS":
		return true
	default:
		return false
	}
}

// mergedResponse rewrites template's message.content to the full
// accumulated text, preserving every other field (usage, id, model, ...).
func mergedResponse(template []byte, content string) []byte {
	out, err := sjson.SetBytes(template, "choices.0.message.content", content)
	if err != nil {
		return template
	}
	out, _ = sjson.SetBytes(out, "choices.0.finish_reason", "stop")
	return out
}
