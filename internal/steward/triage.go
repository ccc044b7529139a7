package steward

import (
	"sort"

	"github.com/talgya/blob-world/internal/world"
)

// Crisis levels, most severe first.
const (
	Critical = "CRITICAL"
	Warning  = "WARNING"
	Watch    = "WATCH"
	Healthy  = "HEALTHY"
)

// Thresholds on wellbeing (higher is better) and society relation scores.
const (
	criticalWellbeing = 0.2
	warningWellbeing  = 0.35
	hostileScore      = -0.5
	warScore          = -0.8
	fallingRun        = 3 // consecutive declines before a metric counts as falling
)

// WorldHealth holds derived diagnostic signals computed from a WorldSnapshot.
// Runs before the model is asked anything.
type WorldHealth struct {
	Weakest      string  // metric with the lowest wellbeing
	WeakestValue float64 // its wellbeing, poverty read inverted
	Falling      []string
	Hostile      []RelationPair
	CrisisLevel  string
}

// Triage computes a WorldHealth from the snapshot's data.
func Triage(snap *WorldSnapshot) *WorldHealth {
	h := &WorldHealth{CrisisLevel: Healthy, WeakestValue: 1}

	for _, m := range snap.Metrics.Metrics {
		if w := world.Wellbeing(m.Name, m.Value); w < h.WeakestValue || h.Weakest == "" {
			h.Weakest, h.WeakestValue = m.Name, w
		}
	}
	for name, trail := range snap.Metrics.History {
		if worsening(name, trail, fallingRun) {
			h.Falling = append(h.Falling, name)
		}
	}
	sort.Strings(h.Falling)

	worst := 0.0
	for _, p := range snap.Relations.Pairs {
		if p.Score <= hostileScore {
			h.Hostile = append(h.Hostile, p)
		}
		if p.Score < worst {
			worst = p.Score
		}
	}

	switch {
	case h.Weakest != "" && h.WeakestValue < criticalWellbeing:
		h.CrisisLevel = Critical
	case worst <= warScore:
		h.CrisisLevel = Critical
	case h.Weakest != "" && h.WeakestValue < warningWellbeing:
		h.CrisisLevel = Warning
	case len(h.Hostile) > 0:
		h.CrisisLevel = Warning
	case len(h.Falling) > 0:
		h.CrisisLevel = Watch
	}
	return h
}

// worsening reports whether the last run steps of trail all lost wellbeing.
func worsening(name string, trail []float64, run int) bool {
	if len(trail) < run+1 {
		return false
	}
	tail := trail[len(trail)-run-1:]
	for i := 1; i < len(tail); i++ {
		if world.Wellbeing(name, tail[i]) >= world.Wellbeing(name, tail[i-1]) {
			return false
		}
	}
	return true
}
