// Package world provides the global world metrics: named gauges in [0, 1]
// with value trails and qualitative labels.
package world

import (
	"fmt"
	"strings"

	"github.com/talgya/blob-world/internal/social"
)

// Known is the fixed metric vocabulary, in display order.
var Known = []string{
	"happiness",
	"safety",
	"prosperity",
	"poverty",
	"health",
	"education",
	"stability",
	"environment",
}

// DefaultInitial is the starting value of every metric.
const DefaultInitial = 0.5

// inverted metrics read "higher is worse" and get their own label set.
var inverted = map[string][5]string{
	"poverty": {"Severe", "Widespread", "Moderate", "Limited", "Rare"},
}

var standardLabels = [5]string{"Very High", "High", "Medium", "Low", "Very Low"}

// IsKnown reports whether name (already normalized) is a known metric.
func IsKnown(name string) bool {
	for _, k := range Known {
		if k == name {
			return true
		}
	}
	return false
}

// NormalizeName lower-cases a metric name and folds spaces and hyphens to underscores.
func NormalizeName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// MetricChange is one metric delta reported by an event.
type MetricChange struct {
	Metric string        `json:"metric"`
	Change social.Change `json:"change"`
}

// MetricValue is a metric name with its current value.
type MetricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// Metrics holds the world gauges and their history trails.
type Metrics struct {
	initial float64
	order   []string
	values  map[string]float64
	history map[string][]float64
}

// NewMetrics seeds every known metric at initial.
func NewMetrics(initial float64) *Metrics {
	m := &Metrics{
		initial: social.Clamp(initial, 0, 1),
		values:  make(map[string]float64, len(Known)),
		history: make(map[string][]float64, len(Known)),
	}
	for _, name := range Known {
		m.seed(name)
	}
	return m
}

func (m *Metrics) seed(name string) {
	m.order = append(m.order, name)
	m.values[name] = m.initial
	m.history[name] = []float64{m.initial}
}

// Update applies a change category to a metric, clamps to [0, 1] and
// appends the new value to the metric's history.
func (m *Metrics) Update(name string, c social.Change) float64 {
	if _, ok := m.values[name]; !ok {
		m.seed(name)
	}
	v := social.Clamp(m.values[name]+c.Delta(), 0, 1)
	m.values[name] = v
	m.history[name] = append(m.history[name], v)
	return v
}

// Set overwrites a metric value and records it. Used to configure starting conditions.
func (m *Metrics) Set(name string, v float64) {
	if _, ok := m.values[name]; !ok {
		m.seed(name)
	}
	v = social.Clamp(v, 0, 1)
	m.values[name] = v
	m.history[name] = append(m.history[name], v)
}

// Value returns the metric value, or the initial value if it was never set.
func (m *Metrics) Value(name string) float64 {
	if v, ok := m.values[name]; ok {
		return v
	}
	return m.initial
}

// History returns a copy of the metric's value trail.
func (m *Metrics) History(name string) []float64 {
	return append([]float64(nil), m.history[name]...)
}

// Snapshot returns every metric with its label, in display order.
func (m *Metrics) Snapshot() []MetricValue {
	out := make([]MetricValue, len(m.order))
	for i, name := range m.order {
		out[i] = MetricValue{Name: name, Value: m.values[name], Label: m.Label(name)}
	}
	return out
}

// Label returns the qualitative label for a metric's current value.
func (m *Metrics) Label(name string) string {
	return LabelFor(name, m.Value(name))
}

// LabelFor labels a value using the metric's polarity.
func LabelFor(name string, v float64) string {
	labels := standardLabels
	if inv, ok := inverted[name]; ok {
		labels = inv
	}
	switch {
	case v >= 0.8:
		return labels[0]
	case v >= 0.6:
		return labels[1]
	case v <= 0.2:
		return labels[4]
	case v <= 0.4:
		return labels[3]
	}
	return labels[2]
}

// Wellbeing reads a metric value so that higher is always better.
func Wellbeing(name string, v float64) float64 {
	if _, ok := inverted[name]; ok {
		return 1 - v
	}
	return v
}

// Summarize renders one "Happiness: Medium (50%)" line per metric.
func (m *Metrics) Summarize() string {
	lines := make([]string, len(m.order))
	for i, name := range m.order {
		lines[i] = fmt.Sprintf("%s: %s (%d%%)", DisplayName(name), m.Label(name), percent(m.values[name]))
	}
	return strings.Join(lines, "\n")
}

// Headline picks the highest-priority change (first seen wins ties) and
// describes it against the metric's current value.
func (m *Metrics) Headline(changes []MetricChange) string {
	best := -1
	bestPriority := 0
	for i, ch := range changes {
		if p := ch.Change.Priority(); p > bestPriority {
			best, bestPriority = i, p
		}
	}
	if best < 0 || bestPriority <= 1 {
		return "No significant change in world metrics."
	}

	ch := changes[best]
	verb := "rises"
	if ch.Change.Delta() < 0 {
		verb = "falls"
	}
	return fmt.Sprintf("%s %s to %d%%", DisplayName(ch.Metric), verb, percent(m.Value(ch.Metric)))
}

// DisplayName turns "public_health" into "Public Health".
func DisplayName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func percent(v float64) int {
	return int(v*100 + 0.5)
}
