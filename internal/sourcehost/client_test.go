package sourcehost

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestDoRetriesOnRateLimitThenSucceeds(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.APIURL = srv.URL
	opts.RateLimitPerSec = 1000
	c := New(opts, discardLogger())

	body, status, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/repos/acme/widget"})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want %d", status, http.StatusOK)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want exactly 2", calls)
	}
}

func TestDoDoesNotRetryPlain404(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.APIURL = srv.URL
	opts.RateLimitPerSec = 1000
	c := New(opts, discardLogger())

	_, status, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/repos/acme/gone"})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", status, http.StatusNotFound)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want exactly 1 (4xx other than 408/429 must not retry)", calls)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(discardWriter), &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
