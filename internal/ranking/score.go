package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/skillnest/registry/internal/store"
)

const maxSnapshots = 20

// snapshotsAt returns the star count recorded at or immediately before the
// given day in series, falling back to currentStars if series has no
// history old enough to cover it.
func snapshotsAt(series []store.StarSnapshot, day time.Time, currentStars int) int {
	target := day.Format("2006-01-02")
	best := -1
	bestDay := ""
	for _, s := range series {
		if s.D <= target && s.D > bestDay {
			best = s.Stars
			bestDay = s.D
		}
	}
	if best < 0 {
		return currentStars
	}
	return best
}

// computeScore implements the trending-score formula: a base popularity
// term scaled by recent velocity, freshness of indexing, and commit
// recency.
func computeScore(stars int, series []store.StarSnapshot, indexedAt time.Time, lastCommitAt *time.Time, now time.Time) float64 {
	baseScore := math.Log10(float64(stars)+1) * 10

	stars7d := snapshotsAt(series, now.AddDate(0, 0, -7), stars)
	stars30d := snapshotsAt(series, now.AddDate(0, 0, -30), stars)

	daily7 := math.Max(0, float64(stars-stars7d)/7)
	daily30 := math.Max(0, float64(stars-stars30d)/30)

	var acceleration float64
	switch {
	case daily30 > 0.1:
		acceleration = daily7 / daily30
	case daily7 > 0:
		acceleration = 2
	default:
		acceleration = 1
	}

	velocity := 1.0 + math.Log2(daily7+1)*math.Min(acceleration, 3)*0.4
	velocity = clamp(velocity, 1.0, 5.0)

	daysSinceIndexed := now.Sub(indexedAt).Hours() / 24
	recency := math.Max(1.0, 1.5-daysSinceIndexed/14)

	activity := 1.0
	if lastCommitAt != nil {
		daysSinceCommit := now.Sub(*lastCommitAt).Hours() / 24
		switch {
		case daysSinceCommit <= 30:
			activity = 1.0
		case daysSinceCommit <= 90:
			activity = 0.9
		case daysSinceCommit <= 180:
			activity = 0.7
		case daysSinceCommit <= 365:
			activity = 0.5
		default:
			activity = 0.3
		}
	}

	score := baseScore * velocity * recency * activity
	return math.Round(score*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// compressSnapshots applies the union-of-retention-rules down to at most
// maxSnapshots points: first, last, anything within the last 7 days,
// anything within the last 8 weeks that falls on a Sunday, any older point
// that is the first of its month, and any point whose star-delta versus the
// previously kept point exceeds 10%. If the union still exceeds the bound,
// keep only the most recent maxSnapshots.
func compressSnapshots(series []store.StarSnapshot, now time.Time) []store.StarSnapshot {
	if len(series) <= maxSnapshots {
		return series
	}

	sorted := make([]store.StarSnapshot, len(series))
	copy(sorted, series)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].D < sorted[j].D })

	sevenDaysAgo := now.AddDate(0, 0, -7).Format("2006-01-02")
	eightWeeksAgo := now.AddDate(0, 0, -56).Format("2006-01-02")

	keep := make([]bool, len(sorted))
	keep[0] = true
	keep[len(sorted)-1] = true

	var lastKeptStars = sorted[0].Stars
	for i, s := range sorted {
		if keep[i] {
			lastKeptStars = s.Stars
			continue
		}
		d, err := time.Parse("2006-01-02", s.D)
		if err != nil {
			continue
		}
		switch {
		case s.D >= sevenDaysAgo:
			keep[i] = true
		case s.D >= eightWeeksAgo && d.Weekday() == time.Sunday:
			keep[i] = true
		case d.Day() == 1:
			keep[i] = true
		case lastKeptStars > 0 && math.Abs(float64(s.Stars-lastKeptStars))/float64(lastKeptStars) > 0.10:
			keep[i] = true
		}
		if keep[i] {
			lastKeptStars = s.Stars
		}
	}

	out := make([]store.StarSnapshot, 0, maxSnapshots)
	for i, s := range sorted {
		if keep[i] {
			out = append(out, s)
		}
	}

	if len(out) > maxSnapshots {
		out = out[len(out)-maxSnapshots:]
	}
	return out
}

// appendSnapshotIfChanged appends today's star count to series when it
// differs from the most recent recorded point (or when series is empty).
func appendSnapshotIfChanged(series []store.StarSnapshot, stars int, now time.Time) []store.StarSnapshot {
	today := now.Format("2006-01-02")
	if len(series) > 0 {
		last := series[len(series)-1]
		if last.D == today {
			series[len(series)-1].Stars = stars
			return series
		}
		if last.Stars == stars {
			return series
		}
	}
	return append(series, store.StarSnapshot{D: today, Stars: stars})
}
