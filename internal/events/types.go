// Package events turns narrator replies into validated world events.
package events

import (
	"fmt"
	"strings"

	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/world"
)

// WorldEvent is one narrated step of world history. Immutable once appended
// to the world's history, except ImageURL.
type WorldEvent struct {
	Year             int                  `json:"year"`
	Headline         string               `json:"headline"`
	Details          string               `json:"details"`
	Impacts          []Impact             `json:"impacts"`
	SocietyRelations []RelationChange     `json:"society_relations"`
	WorldMetrics     []world.MetricChange `json:"world_metrics"`
	MetricsHeadline  string               `json:"metrics_headline,omitempty"`
	ImageURL         string               `json:"image_url,omitempty"`
}

// ImpactTarget is either a known blob or a key that could not be resolved.
type ImpactTarget struct {
	BlobID *int   `json:"blob_id,omitempty"`
	Key    string `json:"unresolved,omitempty"`
}

// KnownBlob targets an existing blob.
func KnownBlob(id int) ImpactTarget {
	return ImpactTarget{BlobID: &id}
}

// Unresolved keeps the original key of an impact nobody could be matched to.
func Unresolved(key string) ImpactTarget {
	return ImpactTarget{Key: key}
}

// Blob returns the target blob ID, if resolved.
func (t ImpactTarget) Blob() (int, bool) {
	if t.BlobID == nil {
		return 0, false
	}
	return *t.BlobID, true
}

func (t ImpactTarget) String() string {
	if id, ok := t.Blob(); ok {
		return fmt.Sprintf("Blob-%d", id)
	}
	return t.Key
}

// Impact is what an event did to one blob.
type Impact struct {
	Target ImpactTarget `json:"target"`
	Text   string       `json:"text"`
}

// RelationChange is a directionless change between two societies.
type RelationChange struct {
	Society1 int           `json:"society1"`
	Society2 int           `json:"society2"`
	Change   social.Change `json:"change"`
}

// Key returns the canonical "min-max" pair key.
func (rc RelationChange) Key() string {
	return social.PairKey(rc.Society1, rc.Society2)
}

// ImpactFor returns the impact text for a blob, if any.
func (e *WorldEvent) ImpactFor(blobID int) (string, bool) {
	for _, imp := range e.Impacts {
		if id, ok := imp.Target.Blob(); ok && id == blobID {
			return imp.Text, true
		}
	}
	return "", false
}

// Summary renders the event for the narrator's history recap.
func (e *WorldEvent) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Year %d: %s\n%s\n\nImpacts:", e.Year, e.Headline, e.Details)
	for _, imp := range e.Impacts {
		fmt.Fprintf(&b, "\n- %s: %s", imp.Target, imp.Text)
	}

	if len(e.SocietyRelations) > 0 {
		b.WriteString("\n\nSociety Relations:")
		for _, rc := range e.SocietyRelations {
			fmt.Fprintf(&b, "\n- Society-%d and Society-%d: %s", rc.Society1, rc.Society2, rc.Change)
		}
	}
	if len(e.WorldMetrics) > 0 {
		b.WriteString("\n\nWorld Metrics:")
		for _, mc := range e.WorldMetrics {
			fmt.Fprintf(&b, "\n- %s: %s", world.DisplayName(mc.Metric), mc.Change)
		}
	}
	return b.String()
}
