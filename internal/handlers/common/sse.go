package common

import (
	"bufio"
	"io"
	"net/http"

	"gcligateway/internal/constants"
	"github.com/gin-gonic/gin"
)

// StreamReader sets the standard SSE response headers and copies reader's
// bytes straight through to the client, flushing after every read so
// keepalive heartbeats and chunk boundaries reach the caller promptly. The
// reader is expected to already be framed as SSE ("data: ...\n\n") by its
// producer (streaming.FakeStream, streaming.AntiTruncate, or a native
// passthrough body) — this is a transport, not a re-framer.
func StreamReader(c *gin.Context, reader io.Reader) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)

	buf := make([]byte, constants.SSEScannerInitialBufferSize)
	w := bufio.NewWriterSize(c.Writer, len(buf))
	defer w.Flush()

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			w.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			return
		}
	}
}
