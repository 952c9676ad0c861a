// Package tap implements the pass-through byte-stream wrapper that sits
// between an upstream response body and the client: every chunk crosses
// unchanged, while a private copy accumulates in a buffer that, once the
// stream ends, drives attribute extraction and stats accounting.
package tap

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/anthropics/cc-proxy/internal/attrs"
	"github.com/anthropics/cc-proxy/internal/sse"
	"github.com/anthropics/cc-proxy/internal/stats"
)

// Tap wraps an upstream response body, forwarding every Read unchanged
// while mirroring the bytes into a private buffer. It implements
// io.ReadCloser so it can replace http.Response.Body in place.
type Tap struct {
	body      io.ReadCloser
	span      trace.Span
	stats     *stats.Stats
	streaming bool
	sentAt    time.Time
	logger    *slog.Logger

	mu        sync.Mutex
	buf       bytes.Buffer
	firstByte bool
	finished  bool
}

// New constructs a Tap. sentAt is the moment the upstream request was
// sent, used as the baseline for ttft_ms/total_duration_ms. streaming
// selects which half of the attribute/stats extractor runs at
// end-of-stream.
func New(body io.ReadCloser, span trace.Span, st *stats.Stats, streaming bool, sentAt time.Time, logger *slog.Logger) *Tap {
	return &Tap{body: body, span: span, stats: st, streaming: streaming, sentAt: sentAt, logger: logger}
}

// Read forwards to the wrapped body and mirrors the bytes read into the
// side buffer. Extraction runs once Read reports io.EOF.
func (t *Tap) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	if n > 0 {
		t.mirror(p[:n])
	}
	if err == io.EOF {
		t.finish()
	}
	return n, err
}

// Close finalizes extraction (if Read never reached io.EOF, e.g. the
// client disconnected mid-stream) and closes the wrapped body.
func (t *Tap) Close() error {
	t.finish()
	return t.body.Close()
}

// mirror appends a forwarded chunk to the side buffer and records
// ttft_ms on the first chunk. It waits for the buffer lock; a panic while
// buffering is recovered and the chunk is silently left out of the side
// buffer — mirror never affects the bytes already forwarded to the client.
func (t *Tap) mirror(chunk []byte) {
	defer func() { recover() }()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.firstByte {
		t.firstByte = true
		t.span.SetAttributes(attribute.Int64("ttft_ms", time.Since(t.sentAt).Milliseconds()))
	}
	t.buf.Write(chunk)
}

// finish runs the end-of-stream extraction exactly once: it records
// total_duration_ms and hands the accumulated buffer to the attribute
// extractor and the stats extractor. Safe to call more than once (Read's
// io.EOF path and Close may both reach it).
func (t *Tap) finish() {
	t.mu.Lock()
	if t.finished {
		t.mu.Unlock()
		return
	}
	t.finished = true
	body := append([]byte(nil), t.buf.Bytes()...)
	t.mu.Unlock()

	t.span.SetAttributes(attribute.Int64("total_duration_ms", time.Since(t.sentAt).Milliseconds()))

	if t.streaming {
		events := sse.Parse(body)
		t.span.SetAttributes(attrs.ResponseAttributesSSE(events)...)
		extractStatsSSE(t.stats, events)
	} else {
		t.span.SetAttributes(attrs.ResponseAttributesJSON(body)...)
		extractStatsJSON(t.stats, body)
	}

	// The tap holds the only reference to the root span from the moment
	// C8 starts streaming the body (see spec §4.7): ending it here, once
	// per request, is what "closes the root span when bytes complete"
	// means in spec §2's control-flow summary.
	t.span.End()
}
