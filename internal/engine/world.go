// World - the single explicit state object of one simulation run.
package engine

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/events"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/world"
)

// State is the lifecycle stage of a world.
type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "uninitialized"
}

// NoHistory is the recap used before the first event.
const NoHistory = "No historical events have occurred yet."

// World owns every registry of one run. Nothing in it is shared with
// another world.
type World struct {
	ID          string
	State       State
	CurrentYear int
	CreatedAt   time.Time

	Blobs        *agents.Registry
	Societies    *social.Registry
	Metrics      *world.Metrics
	Conversation *llm.Conversation

	// Append-only. Only ImageURL of an appended event may change.
	Events []*events.WorldEvent

	Meetings Meetings

	rng *rand.Rand // story scenarios, used under tickMu
}

func newWorld(sampler *agents.Sampler, initialMetric float64) *World {
	return &World{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Blobs:     agents.NewRegistry(sampler),
		Societies: social.NewRegistry(),
		Metrics:   world.NewMetrics(initialMetric),
	}
}

// Event returns the event at index, if any.
func (w *World) Event(index int) (*events.WorldEvent, bool) {
	if index < 0 || index >= len(w.Events) {
		return nil, false
	}
	return w.Events[index], true
}

// Headlines returns every event headline, oldest first.
func (w *World) Headlines() []string {
	out := make([]string, len(w.Events))
	for i, ev := range w.Events {
		out[i] = ev.Headline
	}
	return out
}

// HistorySummary recaps the first event plus the most recent window-1 events.
// With window <= 1 only the first event is kept.
func (w *World) HistorySummary(window int) string {
	if len(w.Events) == 0 {
		return NoHistory
	}

	var picked []*events.WorldEvent
	switch {
	case window <= 1:
		picked = w.Events[:1]
	case len(w.Events) <= window:
		picked = w.Events
	default:
		picked = append([]*events.WorldEvent{w.Events[0]}, w.Events[len(w.Events)-(window-1):]...)
	}

	parts := make([]string, len(picked))
	for i, ev := range picked {
		parts[i] = ev.Summary()
	}
	return strings.Join(parts, "\n\n")
}

// ReportData gathers what a status report needs.
func (w *World) ReportData() *llm.ReportData {
	data := &llm.ReportData{
		Year:      w.CurrentYear,
		Metrics:   w.Metrics.Summarize(),
		Relations: w.Societies.RelationsReport(),
		Headlines: w.Headlines(),
	}
	for _, b := range w.Blobs.All() {
		data.Blobs = append(data.Blobs, b.Name)
	}
	for _, s := range w.Societies.All() {
		data.Societies = append(data.Societies, s.Name())
	}
	return data
}
