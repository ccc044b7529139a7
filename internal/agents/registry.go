package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/talgya/blob-world/internal/social"
)

// ErrUnknownBlob is returned when an operation names a blob that does not exist.
var ErrUnknownBlob = errors.New("unknown blob")

// Registry owns every blob of a world. Blobs are never removed.
type Registry struct {
	blobs   []*Blob
	index   map[int]*Blob
	sampler *Sampler
	nextID  int
}

// NewRegistry creates an empty registry drawing properties from sampler.
func NewRegistry(sampler *Sampler) *Registry {
	return &Registry{
		index:   make(map[int]*Blob),
		sampler: sampler,
	}
}

// CreateBatch creates n blobs with sequential IDs, starting at 0 for a
// fresh registry.
func (r *Registry) CreateBatch(n int) []*Blob {
	created := make([]*Blob, 0, n)
	for _, props := range r.sampler.Sample(n) {
		id := r.nextID
		r.nextID++

		b := &Blob{
			ID:            id,
			Name:          BlobName(id),
			Properties:    props,
			Relationships: make(map[int]float64),
			Traits:        []string{},
			History:       []HistoryEntry{},
		}
		r.blobs = append(r.blobs, b)
		r.index[id] = b
		created = append(created, b)
	}
	return created
}

// Get returns the blob with the given ID.
func (r *Registry) Get(id int) (*Blob, bool) {
	b, ok := r.index[id]
	return b, ok
}

// HasBlob reports whether id names an existing blob.
func (r *Registry) HasBlob(id int) bool {
	_, ok := r.index[id]
	return ok
}

// All returns every blob in ID order.
func (r *Registry) All() []*Blob {
	return r.blobs
}

// Len returns the number of blobs.
func (r *Registry) Len() int {
	return len(r.blobs)
}

// Members returns every blob as a social.Member.
func (r *Registry) Members() []social.Member {
	out := make([]social.Member, len(r.blobs))
	for i, b := range r.blobs {
		out[i] = b
	}
	return out
}

// FindByName looks a blob up by display name, case-insensitively.
func (r *Registry) FindByName(name string) (*Blob, bool) {
	name = strings.TrimSpace(name)
	for _, b := range r.blobs {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return nil, false
}

// BlobIDByName is FindByName returning only the ID.
func (r *Registry) BlobIDByName(name string) (int, bool) {
	b, ok := r.FindByName(name)
	if !ok {
		return 0, false
	}
	return b.ID, true
}

// NameOf returns the display name of a blob ID, known or not.
func (r *Registry) NameOf(id int) string {
	if b, ok := r.index[id]; ok {
		return b.Name
	}
	return BlobName(id)
}

// AssignPersonality sets the blob's personality text and traits.
func (r *Registry) AssignPersonality(id int, personality string, traits []string) error {
	b, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBlob, id)
	}
	b.Personality = personality
	b.Traits = append([]string(nil), traits...)
	return nil
}

// UpdateRelationship applies a change to the relationship between a and b on
// both sides. Missing entries start at neutral. Returns a's new score.
func (r *Registry) UpdateRelationship(a, b int, c social.Change) (float64, error) {
	if a == b {
		return 0, fmt.Errorf("blob %d cannot relate to itself", a)
	}
	ba, ok := r.index[a]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBlob, a)
	}
	bb, ok := r.index[b]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownBlob, b)
	}

	ba.Relationships[b] = social.UpdateScore(ba.Relationships[b], c)
	bb.Relationships[a] = social.UpdateScore(bb.Relationships[a], c)
	return ba.Relationships[b], nil
}

// RecordHistory appends a history entry to the blob with the given ID.
func (r *Registry) RecordHistory(id, year int, kind, description string) error {
	b, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBlob, id)
	}
	b.RecordHistory(year, kind, description)
	return nil
}

// Roster renders "Blob-0 (ID: 0): props" lines for the narrator.
func (r *Registry) Roster() string {
	lines := make([]string, len(r.blobs))
	for i, b := range r.blobs {
		lines[i] = fmt.Sprintf("%s (ID: %d): %s", b.Name, b.ID, b.Describe())
	}
	return strings.Join(lines, "\n")
}

// Personalities renders "Blob-0: personality (Traits: a, b)" paragraphs.
func (r *Registry) Personalities() string {
	parts := make([]string, len(r.blobs))
	for i, b := range r.blobs {
		parts[i] = fmt.Sprintf("%s: %s (Traits: %s)", b.Name, b.Personality, strings.Join(b.Traits, ", "))
	}
	return strings.Join(parts, "\n\n")
}
