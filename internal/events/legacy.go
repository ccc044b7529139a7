package events

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/world"
)

var (
	sectionPattern  = regexp.MustCompile(`(?i)\[(YEAR|HEADLINE|DETAILS|IMPACTS|RELATIONS|METRICS)\]:`)
	legacyYear      = regexp.MustCompile(`^\s*(\d+)`)
	legacyRelation  = regexp.MustCompile(`(?i)society[\s_-]*(\d+)\s*(?:and|-|&|,)\s*society[\s_-]*(\d+)\s*:\s*(.+)`)
	requiredSection = []string{"YEAR", "HEADLINE", "DETAILS", "IMPACTS"}
)

// legacySections splits a tagged reply into its sections. A repeated tag
// keeps its first body.
func legacySections(reply string) map[string]string {
	locs := sectionPattern.FindAllStringSubmatchIndex(reply, -1)
	out := make(map[string]string, len(locs))
	for i, loc := range locs {
		tag := strings.ToUpper(reply[loc[2]:loc[3]])
		end := len(reply)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, seen := out[tag]; seen {
			continue
		}
		out[tag] = strings.TrimSpace(reply[loc[1]:end])
	}
	return out
}

// fromLegacy reads the bracketed-tag format:
//
//	[YEAR]: 4
//	[HEADLINE]: ...
//	[DETAILS]: ...
//	[IMPACTS]:
//	- Blob 2: ...
//
// All four core sections must be present. RELATIONS and METRICS are optional.
func (p *Parser) fromLegacy(reply string, currentYear int) (*WorldEvent, bool) {
	sections := legacySections(reply)
	for _, tag := range requiredSection {
		if _, ok := sections[tag]; !ok {
			return nil, false
		}
	}

	year := currentYear + 1
	if m := legacyYear.FindStringSubmatch(sections["YEAR"]); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			year = n
		}
	}
	if year < currentYear {
		year = currentYear
	}

	headline, _, _ := strings.Cut(sections["HEADLINE"], "\n")
	ev := &WorldEvent{
		Year:     year,
		Headline: orDefault(strings.TrimSpace(headline), DefaultHeadline),
		Details:  orDefault(sections["DETAILS"], DefaultDetails),
	}

	for _, line := range bulletLines(sections["IMPACTS"]) {
		key, text, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		ev.Impacts = append(ev.Impacts, p.resolveImpact(strings.TrimSpace(key), strings.TrimSpace(text)))
	}

	for _, line := range bulletLines(sections["RELATIONS"]) {
		m := legacyRelation.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		ev.SocietyRelations = append(ev.SocietyRelations, RelationChange{
			Society1: a,
			Society2: b,
			Change:   social.NormalizeChange(m[3]),
		})
	}

	for _, line := range bulletLines(sections["METRICS"]) {
		name, change, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = world.NormalizeName(name)
		if !world.IsKnown(name) {
			continue
		}
		ev.WorldMetrics = append(ev.WorldMetrics, world.MetricChange{Metric: name, Change: social.NormalizeChange(change)})
	}
	return ev, true
}

// bulletLines returns the non-empty lines of a section with list markers removed.
func bulletLines(section string) []string {
	var out []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
