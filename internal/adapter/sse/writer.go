package sse

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/thushan/ladle/internal/core/constants"
	"github.com/thushan/ladle/pkg/pool"
)

const frameBufferSize = 1024

// framePool is shared across streams; frames are small and short-lived so
// pooling keeps per-event allocations off the hot path.
var framePool = newFramePool()

func newFramePool() *pool.Pool[*bytes.Buffer] {
	p, err := pool.NewLitePool(func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, frameBufferSize))
	})
	if err != nil {
		panic("sse: failed to initialise frame buffer pool")
	}
	return p
}

// StreamWriter frames events onto one HTTP response, flushing after every
// write so the client sees frames as they happen.
type StreamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStreamWriter prepares the response for event streaming. The headers
// disable client and proxy buffering; X-Accel-Buffering covers nginx-style
// reverse proxies in front of the gateway.
func NewStreamWriter(w http.ResponseWriter) (*StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	h := w.Header()
	h.Set(constants.ContentTypeHeader, constants.ContentTypeSSE)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &StreamWriter{w: w, flusher: flusher}, nil
}

// WriteEvent emits one `event:`/`data:` frame. Data is written verbatim;
// marshalled JSON never carries raw newlines so no line splitting is needed.
func (sw *StreamWriter) WriteEvent(ev Event) error {
	buf := framePool.Get()
	defer framePool.Put(buf)

	buf.WriteString("event: ")
	buf.WriteString(ev.Name)
	buf.WriteString("\ndata: ")
	buf.Write(ev.Data)
	buf.WriteString("\n\n")

	if _, err := sw.w.Write(buf.Bytes()); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// WriteKeepalive emits a comment frame that keeps intermediaries from
// timing out an otherwise quiet stream.
func (sw *StreamWriter) WriteKeepalive() error {
	if _, err := sw.w.Write([]byte(": keepalive\n\n")); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}
