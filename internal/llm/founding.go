// Founding replies - parsing the narrator's society charters and blob
// personalities, with fixed fallbacks when a reply is unusable.
package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/talgya/blob-world/internal/social"
)

// Personality fallbacks.
const DefaultPersonality = "A mysterious blob with unique qualities"

var DefaultTraits = []string{"mysterious", "adaptable", "curious"}

var (
	personalityPattern = regexp.MustCompile(`(?is)PERSONALITY:\s*(.*?)\s*\|`)
	traitsPattern      = regexp.MustCompile(`(?is)TRAITS:\s*(.*)`)
	charterPattern     = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
)

// ParsePersonality reads a "PERSONALITY: ... | TRAITS: a, b" reply. Missing
// parts fall back to DefaultPersonality and DefaultTraits.
func ParsePersonality(reply string) (string, []string) {
	personality := ""
	if m := personalityPattern.FindStringSubmatch(reply); m != nil {
		personality = strings.Trim(strings.TrimSpace(m[1]), "[]'\"")
	}

	var traits []string
	if m := traitsPattern.FindStringSubmatch(reply); m != nil {
		body := strings.TrimSpace(m[1])
		if i := strings.IndexByte(body, '\n'); i >= 0 {
			body = body[:i]
		}
		for _, t := range strings.Split(strings.Trim(body, "[]'\". "), ",") {
			t = strings.Trim(strings.TrimSpace(t), "[]'\".")
			if t != "" {
				traits = append(traits, t)
			}
		}
	}

	if personality == "" {
		personality = DefaultPersonality
	}
	if len(traits) == 0 {
		traits = append([]string(nil), DefaultTraits...)
	}
	return personality, traits
}

// ParseCharters reads a JSON array of {ideology, values} objects and returns
// exactly n charters. A reply that is not a JSON array yields the default
// charters; a short array is padded with them.
func ParseCharters(reply string, n int) ([]social.Charter, bool) {
	text := reply
	if m := charterPattern.FindString(reply); m != "" {
		text = m
	}

	var raw []struct {
		Ideology string   `json:"ideology"`
		Values   []string `json:"values"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return social.DefaultCharters(n), false
	}

	out := social.DefaultCharters(n)
	for i := 0; i < n && i < len(raw); i++ {
		c := social.Charter{Ideology: strings.TrimSpace(raw[i].Ideology), Values: raw[i].Values}
		if c.Ideology == "" {
			c.Ideology = "Unknown"
		}
		if len(c.Values) == 0 {
			c.Values = []string{"Unknown"}
		}
		out[i] = c
	}
	return out, true
}
