package lifecycle

import (
	"testing"
	"time"

	"github.com/skillnest/registry/internal/store"
)

func TestTierForActivityUnknownCommitIsHot(t *testing.T) {
	now := time.Now()
	if got := tierForActivity(nil, now); got != store.TierHot {
		t.Errorf("tierForActivity(nil, now) = %q, want hot", got)
	}
}

func TestTierForActivityRecentIsHot(t *testing.T) {
	now := time.Now()
	recent := now.AddDate(0, 0, -10)
	if got := tierForActivity(&recent, now); got != store.TierHot {
		t.Errorf("tierForActivity(-10d) = %q, want hot", got)
	}
}

func TestTierForActivityQuarterStaleIsCold(t *testing.T) {
	now := time.Now()
	stale := now.AddDate(0, 0, -100)
	if got := tierForActivity(&stale, now); got != store.TierCold {
		t.Errorf("tierForActivity(-100d) = %q, want cold", got)
	}
}

func TestTierForActivityYearStaleIsArchived(t *testing.T) {
	now := time.Now()
	ancient := now.AddDate(0, 0, -400)
	if got := tierForActivity(&ancient, now); got != store.TierArchived {
		t.Errorf("tierForActivity(-400d) = %q, want archived", got)
	}
}

func TestTierForActivityBoundaries(t *testing.T) {
	now := time.Now()
	exactlyQuarter := now.Add(-coldAfter)
	if got := tierForActivity(&exactlyQuarter, now); got != store.TierCold {
		t.Errorf("tierForActivity(exactly coldAfter) = %q, want cold", got)
	}
	exactlyYear := now.Add(-archivedAfter)
	if got := tierForActivity(&exactlyYear, now); got != store.TierArchived {
		t.Errorf("tierForActivity(exactly archivedAfter) = %q, want archived", got)
	}
}
