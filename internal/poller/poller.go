// Package poller watches the public source-host event firehose and enqueues
// candidate (owner, repo) pairs onto the indexing stream for C5 to inspect.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/skillnest/registry/internal/sourcehost"
	"github.com/skillnest/registry/internal/telemetry"
	"github.com/skillnest/registry/pkg/skillid"
)

const (
	lastEventIDKey   = "poller:last-event-id"
	processedKeyFmt  = "poller:processed:%s"
	markerTTL        = 7 * 24 * time.Hour
	eventsPerPage    = 100
	pushEventType    = "PushEvent"

	// IndexingStream is the Redis Stream C5 consumes from.
	IndexingStream = "registry:indexing"
)

// IndexMessage is one enqueued indexing candidate. JobID is a ULID, so it
// sorts by enqueue time.
type IndexMessage struct {
	JobID     string `json:"jobId"`
	Type      string `json:"type"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	CreatedAt string `json:"createdAt"`
}

// event is the subset of the source-host public event payload this poller needs.
type event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Repo      struct {
		Name string `json:"name"` // "owner/repo"
	} `json:"repo"`
}

// Poller periodically fetches new events and enqueues indexing candidates.
type Poller struct {
	client   *sourcehost.Client
	rdb      *redis.Client
	logger   *slog.Logger
	interval time.Duration
}

// New creates a Poller. client must be configured with APIURL pointed at the
// source host's public event stream endpoint.
func New(client *sourcehost.Client, rdb *redis.Client, logger *slog.Logger, interval time.Duration) *Poller {
	return &Poller{client: client, rdb: rdb, logger: logger, interval: interval}
}

// Run blocks, firing Tick on every interval until ctx is cancelled. Per
// spec.md 4.4, a failed cycle is simply retried on the next tick — no
// events are lost as long as they stay within the source host's retention
// window, which is why the poll interval must stay below that window.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("event poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("event poller stopped")
			return nil
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.Error("event poller tick failed", "error", err)
			}
		}
	}
}

// Tick performs a single poll cycle.
func (p *Poller) Tick(ctx context.Context) error {
	body, status, err := p.client.Do(ctx, sourcehost.Request{Method: "GET", Path: "?per_page=" + itoa(eventsPerPage)})
	if err != nil {
		return fmt.Errorf("fetching events: %w", err)
	}
	if status != 200 {
		return fmt.Errorf("fetching events: unexpected status %d", status)
	}

	var events []event
	if err := json.Unmarshal(body, &events); err != nil {
		return fmt.Errorf("decoding events: %w", err)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	if len(events) == 0 {
		return nil
	}

	lastEventID, err := p.rdb.Get(ctx, lastEventIDKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("reading last-event-id: %w", err)
	}

	if err := p.rdb.Set(ctx, lastEventIDKey, events[0].ID, markerTTL).Err(); err != nil {
		return fmt.Errorf("writing last-event-id: %w", err)
	}

	enqueued := 0
	for _, e := range events {
		if lastEventID != "" && e.ID == lastEventID {
			break
		}

		processedKey := fmt.Sprintf(processedKeyFmt, e.ID)
		already, err := p.rdb.Exists(ctx, processedKey).Result()
		if err != nil {
			p.logger.Warn("checking processed marker", "event_id", e.ID, "error", err)
			continue
		}
		if already > 0 {
			continue
		}

		if e.Type == pushEventType {
			if src, err := skillid.ParseSource(e.Repo.Name); err == nil {
				msg := IndexMessage{
					JobID:     ulid.Make().String(),
					Type:      "check_skill",
					Owner:     src.Owner,
					Repo:      src.Repo,
					EventID:   e.ID,
					EventType: e.Type,
					CreatedAt: e.CreatedAt.Format(time.RFC3339),
				}
				if err := p.enqueue(ctx, msg); err != nil {
					p.logger.Error("enqueuing indexing message", "owner", src.Owner, "repo", src.Repo, "error", err)
					continue
				}
				enqueued++
			}
		}

		if err := p.rdb.Set(ctx, processedKey, "1", markerTTL).Err(); err != nil {
			p.logger.Warn("marking event processed", "event_id", e.ID, "error", err)
		}
	}

	for _, e := range events {
		telemetry.PollEventsFetchedTotal.WithLabelValues(e.Type).Inc()
	}
	telemetry.PollCursorLagSeconds.Set(time.Since(events[0].CreatedAt).Seconds())
	p.logger.Info("poll cycle complete", "fetched", len(events), "enqueued", enqueued)
	return nil
}

func (p *Poller) enqueue(ctx context.Context, msg IndexMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling index message: %w", err)
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: IndexingStream,
		Values: map[string]any{"payload": payload},
	}).Err()
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
