package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/world"
)

// ErrNoEvent is returned when a reply holds no recoverable event.
var ErrNoEvent = errors.New("no event found in reply")

// Placeholders for missing event text.
const (
	DefaultHeadline = "Unknown Event"
	DefaultDetails  = "No details available"
)

// Directory resolves blob references while parsing. Read-only.
type Directory interface {
	HasBlob(id int) bool
	BlobIDByName(name string) (int, bool)
}

// Parser converts narrator replies into world events.
type Parser struct {
	dir Directory
}

// NewParser creates a parser resolving names against dir. A nil dir accepts
// every numeric blob reference and matches no names.
func NewParser(dir Directory) *Parser {
	return &Parser{dir: dir}
}

// Parse extracts one event from reply. Candidates are tried in order: fenced
// code blocks, bare balanced objects, then the legacy tagged format. The
// first candidate with a valid event shape wins. Parse never mutates state.
func (p *Parser) Parse(reply string, currentYear int) (*WorldEvent, error) {
	for _, body := range fencedBodies(reply) {
		for _, obj := range balancedObjects(body) {
			if ev, err := p.fromJSON(obj, currentYear); err == nil {
				slog.Debug("event extracted", "method", "fenced", "year", ev.Year)
				return ev, nil
			}
		}
	}

	for _, obj := range balancedObjects(reply) {
		if ev, err := p.fromJSON(obj, currentYear); err == nil {
			slog.Debug("event extracted", "method", "bare", "year", ev.Year)
			return ev, nil
		}
	}

	if ev, ok := p.fromLegacy(reply, currentYear); ok {
		slog.Debug("event extracted", "method", "legacy", "year", ev.Year)
		return ev, nil
	}
	return nil, ErrNoEvent
}

func (p *Parser) fromJSON(obj string, currentYear int) (*WorldEvent, error) {
	raw, err := orderedObject([]byte(obj))
	if err != nil {
		return nil, err
	}

	// Keys are matched case-insensitively; the first occurrence wins.
	fields := make([]field, 0, len(raw))
	byKey := make(map[string]json.RawMessage, len(raw))
	for _, f := range raw {
		k := strings.ToLower(strings.TrimSpace(f.Key))
		if _, dup := byKey[k]; dup {
			continue
		}
		byKey[k] = f.Value
		fields = append(fields, field{Key: k, Value: f.Value})
	}
	if err := validateShape(fields); err != nil {
		return nil, fmt.Errorf("event shape: %w", err)
	}

	ev := &WorldEvent{
		Year:     resolveYear(byKey["year"], currentYear),
		Headline: textOr(byKey["headline"], DefaultHeadline),
		Details:  textOr(byKey["details"], DefaultDetails),
	}
	ev.Impacts = p.impactsFromJSON(byKey["impacts"])
	ev.SocietyRelations = relationsFromJSON(byKey["society_relations"])
	ev.WorldMetrics = metricsFromJSON(byKey["world_metrics"])
	return ev, nil
}

// resolveYear reads the reply's year, defaulting to currentYear+1, and never
// lets the clock run backwards.
func resolveYear(raw json.RawMessage, currentYear int) int {
	year, ok := intOf(raw)
	if !ok {
		year = currentYear + 1
	}
	if year < currentYear {
		year = currentYear
	}
	return year
}

func textOr(raw json.RawMessage, fallback string) string {
	if s := textOf(raw); s != "" {
		return s
	}
	return fallback
}

func (p *Parser) impactsFromJSON(raw json.RawMessage) []Impact {
	var out []Impact
	switch kind(raw) {
	case '{':
		fields, err := orderedObject(raw)
		if err != nil {
			return nil
		}
		for _, f := range fields {
			out = append(out, p.resolveImpact(f.Key, textOf(f.Value)))
		}
	case '[':
		for _, e := range objectEntries(raw) {
			key, text := impactEntry(e)
			if key == "" {
				continue
			}
			out = append(out, p.resolveImpact(key, text))
		}
	}
	return out
}

// impactEntry reads a list-form impact such as {"blob": 3, "impact": "..."}.
func impactEntry(e map[string]json.RawMessage) (key, text string) {
	for _, k := range []string{"blob", "blob_id", "id", "name", "target"} {
		v, ok := e[k]
		if !ok {
			continue
		}
		if n, isNum := intOf(v); isNum && kind(v) != '"' {
			key = "blob_" + strconv.Itoa(n)
		} else {
			key = textOf(v)
		}
		break
	}
	for _, k := range []string{"impact", "description", "text", "effect"} {
		if v, ok := e[k]; ok {
			text = textOf(v)
			break
		}
	}
	return key, text
}

var blobRefPattern = regexp.MustCompile(`(?i)blob[\s_-]*(\d+)`)

// BlobRefs returns every blob ID referenced as "Blob-3", "blob_3" or "Blob 3"
// in text, in order of first appearance.
func BlobRefs(text string) []int {
	var ids []int
	seen := make(map[int]bool)
	for _, m := range blobRefPattern.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// resolveImpact maps an impact key to a blob: numeric reference first, then
// display name, else an unresolved target whose text keeps the original key.
func (p *Parser) resolveImpact(key, text string) Impact {
	if m := blobRefPattern.FindStringSubmatch(key); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			if p.dir == nil || p.dir.HasBlob(id) {
				return Impact{Target: KnownBlob(id), Text: text}
			}
		}
	} else if p.dir != nil {
		if id, ok := p.dir.BlobIDByName(key); ok {
			return Impact{Target: KnownBlob(id), Text: text}
		}
	}
	return Impact{Target: Unresolved(key), Text: fmt.Sprintf("%s: %s", key, text)}
}

func relationsFromJSON(raw json.RawMessage) []RelationChange {
	var out []RelationChange
	switch kind(raw) {
	case '[':
		for _, e := range objectEntries(raw) {
			a, okA := intOf(lookup(e, "society1", "society_1", "society_a", "from"))
			b, okB := intOf(lookup(e, "society2", "society_2", "society_b", "to"))
			if !okA || !okB {
				continue
			}
			out = append(out, RelationChange{
				Society1: a,
				Society2: b,
				Change:   social.NormalizeChange(textOf(lookup(e, "change", "relation", "relation_change"))),
			})
		}
	case '{':
		// Object form: {"0-1": "increase"}.
		fields, err := orderedObject(raw)
		if err != nil {
			return nil
		}
		for _, f := range fields {
			a, b, ok := splitPairKey(f.Key)
			if !ok {
				continue
			}
			out = append(out, RelationChange{Society1: a, Society2: b, Change: social.NormalizeChange(textOf(f.Value))})
		}
	}
	return out
}

var pairPattern = regexp.MustCompile(`(\d+)\D+(\d+)`)

func splitPairKey(key string) (int, int, bool) {
	m := pairPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, 0, false
	}
	a, errA := strconv.Atoi(m[1])
	b, errB := strconv.Atoi(m[2])
	return a, b, errA == nil && errB == nil
}

func metricsFromJSON(raw json.RawMessage) []world.MetricChange {
	var out []world.MetricChange
	add := func(name, change string) {
		name = world.NormalizeName(name)
		if !world.IsKnown(name) {
			return
		}
		out = append(out, world.MetricChange{Metric: name, Change: social.NormalizeChange(change)})
	}

	switch kind(raw) {
	case '[':
		for _, e := range objectEntries(raw) {
			add(textOf(lookup(e, "metric", "name")), textOf(lookup(e, "change")))
		}
	case '{':
		fields, err := orderedObject(raw)
		if err != nil {
			return nil
		}
		for _, f := range fields {
			add(f.Key, textOf(f.Value))
		}
	}
	return out
}

// lookup returns the first present key of a decoded entry.
func lookup(e map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := e[k]; ok {
			return v
		}
	}
	return nil
}
