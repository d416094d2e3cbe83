package gemini

import (
	"bytes"
	"io"
	"runtime"
)

func goRuntimeVersion() string {
	return runtime.Version()
}

func newBodyReader(body []byte) io.Reader {
	return bytes.NewReader(body)
}
