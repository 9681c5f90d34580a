package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/skillnest/registry/internal/store"
)

func TestComputeScoreNoHistoryFlatVelocity(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	indexedAt := now.AddDate(0, 0, -1)
	lastCommit := now.AddDate(0, 0, -2)

	score := computeScore(100, nil, indexedAt, &lastCommit, now)
	if score <= 0 {
		t.Fatalf("computeScore() = %v, want > 0", score)
	}

	wantBase := math.Round(math.Log10(101)*10*100) / 100
	if score < wantBase*0.9 {
		t.Errorf("computeScore() = %v, want roughly base score %v with velocity=1, recency clamp, activity=1.0", score, wantBase)
	}
}

func TestComputeScoreGrowthIncreasesVelocity(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	indexedAt := now.AddDate(0, 0, -30)
	lastCommit := now.AddDate(0, 0, -1)

	growingSeries := []store.StarSnapshot{
		{D: now.AddDate(0, 0, -30).Format("2006-01-02"), Stars: 10},
		{D: now.AddDate(0, 0, -7).Format("2006-01-02"), Stars: 150},
	}

	flat := computeScore(200, nil, indexedAt, &lastCommit, now)
	growing := computeScore(200, growingSeries, indexedAt, &lastCommit, now)

	if growing <= flat {
		t.Errorf("growing score %v should exceed flat score %v (same current stars, faster recent growth)", growing, flat)
	}
}

func TestComputeScoreStaleActivityDamps(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	indexedAt := now.AddDate(0, 0, -400)
	fresh := now.AddDate(0, 0, -1)
	stale := now.AddDate(0, 0, -400)

	freshScore := computeScore(100, nil, indexedAt, &fresh, now)
	staleScore := computeScore(100, nil, indexedAt, &stale, now)

	if staleScore >= freshScore {
		t.Errorf("stale score %v should be lower than fresh score %v", staleScore, freshScore)
	}
}

func TestComputeScoreUnknownLastCommitTreatedAsFresh(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	indexedAt := now.AddDate(0, 0, -1)

	got := computeScore(50, nil, indexedAt, nil, now)
	withFreshCommit := computeScore(50, nil, indexedAt, timePtr(now.AddDate(0, 0, -1)), now)
	if got != withFreshCommit {
		t.Errorf("unknown last commit score %v should equal fresh-commit score %v", got, withFreshCommit)
	}
}

func TestCompressSnapshotsKeepsMostRecentWhenOverLimit(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	var series []store.StarSnapshot
	for i := 0; i < 60; i++ {
		day := now.AddDate(0, 0, -60+i)
		series = append(series, store.StarSnapshot{D: day.Format("2006-01-02"), Stars: i})
	}

	out := compressSnapshots(series, now)
	if len(out) > maxSnapshots {
		t.Fatalf("compressSnapshots() returned %d points, want <= %d", len(out), maxSnapshots)
	}
	// The retention union keeps 33 of these points, so only the most recent
	// 20 remain: the oldest survivor is day 17, and the first point is gone.
	if out[0].D != series[17].D {
		t.Errorf("compressSnapshots() first point = %v, want %v", out[0], series[17])
	}
	if out[len(out)-1].D != series[len(series)-1].D {
		t.Errorf("compressSnapshots() last point = %v, want %v", out[len(out)-1], series[len(series)-1])
	}
}

func TestCompressSnapshotsNoopUnderLimit(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	series := []store.StarSnapshot{{D: "2026-07-01", Stars: 1}, {D: "2026-07-15", Stars: 2}}
	out := compressSnapshots(series, now)
	if len(out) != len(series) {
		t.Errorf("compressSnapshots() = %v, want unchanged %v", out, series)
	}
}

func TestAppendSnapshotIfChanged(t *testing.T) {
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	series := []store.StarSnapshot{{D: "2026-07-01", Stars: 10}}

	same := appendSnapshotIfChanged(series, 10, now)
	if len(same) != 1 {
		t.Errorf("appendSnapshotIfChanged() with unchanged stars grew series to %v", same)
	}

	changed := appendSnapshotIfChanged(series, 15, now)
	if len(changed) != 2 || changed[1].Stars != 15 {
		t.Errorf("appendSnapshotIfChanged() with changed stars = %v, want a new point of 15", changed)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
