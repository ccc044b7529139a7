// Package agents provides the blob data model, demographic sampling and the
// agent registry.
package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/talgya/blob-world/internal/social"
)

// Blob is an individual simulated agent.
type Blob struct {
	ID   int    `json:"id"`
	Name string `json:"name"` // Display only, derived from ID

	// Demographics, fixed at creation.
	Properties map[string]string `json:"properties"`

	// Social
	SocietyID     *int            `json:"society_id"`
	Relationships map[int]float64 `json:"relationships"` // blob ID → -1.0 to 1.0, created on first interaction

	// Character, set once after creation.
	Personality string   `json:"personality"`
	Traits      []string `json:"traits"`

	History  []HistoryEntry `json:"history"`
	ImageURL string         `json:"image_url,omitempty"`
}

// HistoryEntry records something that happened to a blob.
type HistoryEntry struct {
	Year        int    `json:"year"`
	Type        string `json:"type"` // free-text tag, e.g. "positive", "interaction"
	Description string `json:"description"`
}

// BlobName returns the display name for a blob ID.
func BlobName(id int) string {
	return fmt.Sprintf("Blob-%d", id)
}

// MemberID implements social.Member.
func (b *Blob) MemberID() int { return b.ID }

// CurrentSociety implements social.Member.
func (b *Blob) CurrentSociety() (int, bool) {
	if b.SocietyID == nil {
		return 0, false
	}
	return *b.SocietyID, true
}

// SetSociety implements social.Member. Only social.Registry calls it.
func (b *Blob) SetSociety(id *int) { b.SocietyID = id }

// RecordHistory appends an entry to the blob's history.
func (b *Blob) RecordHistory(year int, kind, description string) {
	b.History = append(b.History, HistoryEntry{Year: year, Type: kind, Description: description})
}

// Describe renders the blob's properties as "key: value; ..." in sampling order.
func (b *Blob) Describe() string {
	parts := make([]string, 0, len(b.Properties))
	seen := make(map[string]bool, len(b.Properties))
	for _, name := range AttributeNames() {
		if v, ok := b.Properties[name]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", name, v))
			seen[name] = true
		}
	}

	var extra []string
	for k := range b.Properties {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s: %s", k, b.Properties[k]))
	}
	return strings.Join(parts, "; ")
}

// RelationshipSummary lists labelled relationships, ordered by blob ID.
func (b *Blob) RelationshipSummary() string {
	if len(b.Relationships) == 0 {
		return fmt.Sprintf("%s doesn't have any relationships yet.", b.Name)
	}
	ids := make([]int, 0, len(b.Relationships))
	for id := range b.Relationships {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	lines := make([]string, len(ids))
	for i, id := range ids {
		score := b.Relationships[id]
		lines[i] = fmt.Sprintf("Relationship with %s: %s (%.2f)", BlobName(id), social.BlobLadder.Describe(score), score)
	}
	return strings.Join(lines, "\n")
}
