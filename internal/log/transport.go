package log

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-request id to the remote store.
const RequestIDHeader = "X-Request-ID"

// Transport is an http.RoundTripper that tags each outbound request with a
// request id and logs its start and completion.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: OrDiscard(logger).WithComponent(ComponentAPI)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
	}

	ctx := req.Context()
	fields := NewFields().WithHTTPRequest(req.Method, req.URL.Path, requestID)
	t.Logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)

	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		fields = fields.WithHTTPResponse(0, durationMs, false)
		fields[FieldError] = err.Error()
		t.Logger.WarnContext(ctx, "HTTP request failed", fields.ToSlice()...)
		return nil, err
	}

	level := slog.LevelInfo
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	fields = fields.WithHTTPResponse(resp.StatusCode, durationMs, resp.StatusCode < 400)
	t.Logger.Logger.Log(ctx, level, "HTTP request completed", t.Logger.withComponent(fields.ToSlice())...)
	return resp, nil
}
