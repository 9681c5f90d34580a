package poller

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/sourcehost"
)

func newTestPoller(t *testing.T, eventsJSON string) (*Poller, *redis.Client) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	opts := sourcehost.DefaultOptions()
	opts.APIURL = srv.URL
	opts.RateLimitPerSec = 1000
	client := sourcehost.New(opts, discardLogger())

	return New(client, rdb, discardLogger(), time.Minute), rdb
}

func TestTickEnqueuesPushEvents(t *testing.T) {
	events := `[
		{"id":"3","type":"PushEvent","created_at":"2026-07-29T10:00:00Z","repo":{"name":"acme/widget"}},
		{"id":"2","type":"WatchEvent","created_at":"2026-07-29T09:59:00Z","repo":{"name":"acme/other"}},
		{"id":"1","type":"PushEvent","created_at":"2026-07-29T09:58:00Z","repo":{"name":"not a valid coordinate"}}
	]`

	p, rdb := newTestPoller(t, events)
	ctx := context.Background()

	if err := p.Tick(ctx); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	last, err := rdb.Get(ctx, lastEventIDKey).Result()
	if err != nil {
		t.Fatalf("reading last-event-id: %v", err)
	}
	if last != "3" {
		t.Errorf("last-event-id = %q, want %q", last, "3")
	}

	length, err := rdb.XLen(ctx, IndexingStream).Result()
	if err != nil {
		t.Fatalf("XLen() error: %v", err)
	}
	if length != 1 {
		t.Errorf("stream length = %d, want 1 (only the valid PushEvent coordinate)", length)
	}
}

func TestTickSkipsAlreadyProcessedEvents(t *testing.T) {
	events := `[{"id":"5","type":"PushEvent","created_at":"2026-07-29T10:00:00Z","repo":{"name":"acme/widget"}}]`

	p, rdb := newTestPoller(t, events)
	ctx := context.Background()

	if err := rdb.Set(ctx, "poller:processed:5", "1", time.Hour).Err(); err != nil {
		t.Fatalf("seeding processed marker: %v", err)
	}

	if err := p.Tick(ctx); err != nil {
		t.Fatalf("Tick() error: %v", err)
	}

	length, err := rdb.XLen(ctx, IndexingStream).Result()
	if err != nil {
		t.Fatalf("XLen() error: %v", err)
	}
	if length != 0 {
		t.Errorf("stream length = %d, want 0 (event already processed)", length)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(discardWriter), &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
