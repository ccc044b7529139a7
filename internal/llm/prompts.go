// Narrator prompts - the fixed instructions sent with each simulation step.
package llm

import (
	"fmt"
	"strings"
)

// changeVocabulary is quoted into every prompt that asks for deltas.
const changeVocabulary = `"big_decrease", "decrease", "none", "increase", or "big_increase"`

// SystemPrompt opens the narrator conversation. metrics lists the metric
// names the narrator may report changes for.
func SystemPrompt(numBlobs, nextYear int, metrics []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are simulating a political evolution game in a fantasy world with %d blob creatures. ", numBlobs)
	b.WriteString("Blobs are gelatinous beings with personalities, traits, and social connections. ")
	b.WriteString("They form societies based on shared values and ideologies.\n\n")
	b.WriteString("SIMULATION RULES:\n")
	b.WriteString("1. Maintain consistency with previous events and blob characteristics\n")
	b.WriteString("2. Consider how blob personalities and society values affect decisions\n")
	b.WriteString("3. Introduce realistic conflicts, friendships, and developments\n")
	b.WriteString("4. Balance randomness with logical consequences\n")
	b.WriteString("5. Track how relations between societies and the state of the world change over time\n\n")
	b.WriteString("RESPOND IN JSON FORMAT ONLY with the following structure:\n```json\n")
	fmt.Fprintf(&b, `{
  "year": %d,
  "headline": "Brief headline of main event",
  "details": "Detailed description of what happened",
  "impacts": {
    "blob_1": "Impact on Blob-1",
    "blob_2": "Impact on Blob-2"
  },
  "society_relations": [
    {"society1": 0, "society2": 1, "change": "increase"}
  ],
  "world_metrics": [
    {"metric": "happiness", "change": "decrease"}
  ]
}`, nextYear)
	b.WriteString("\n```\n\n")
	fmt.Fprintf(&b, "For society_relations and world_metrics, use only these change values: %s.\n", changeVocabulary)
	fmt.Fprintf(&b, "Valid world metrics are: %s.\n", strings.Join(metrics, ", "))
	b.WriteString("Keep total response under 900 characters. Be creative but consistent. Return only valid JSON.")
	return b.String()
}

// IntroPrompt introduces the freshly initialized world.
func IntroPrompt(roster, personalities, societies string) string {
	return fmt.Sprintf("Here are the blobs in our simulation:\n%s\n\n"+
		"Their personalities:\n%s\n\n"+
		"Societies:\n%s\n\n"+
		"Begin the simulation in year 0 with an initial state of the world.",
		roster, personalities, societies)
}

// HistoryContext is the bounded recap appended before each step.
func HistoryContext(history, metrics string) string {
	return fmt.Sprintf("Recent world history:\n%s\n\nCurrent world metrics:\n%s", history, metrics)
}

// AdvancePrompt asks for the next time period.
func AdvancePrompt() string {
	return "Advance the simulation by one time period. Return your response as a JSON object " +
		"with fields for year, headline, details, impacts, society_relations, and world_metrics. " +
		"For society_relations and world_metrics, include how things change (" + changeVocabulary +
		") based on the events."
}

// PolicyPrompt submits a user proposal as the next step.
func PolicyPrompt(proposal string) string {
	return fmt.Sprintf("POLICY PROPOSITION: %s\n\n"+
		"How does this affect the world of blobs? Return your response as a JSON object "+
		"with fields for year, headline, details, impacts, society_relations, and world_metrics.",
		strings.TrimSpace(proposal))
}

// SocietiesSystem and SocietiesPrompt ask for the founding societies.
const SocietiesSystem = "You create detailed fantasy societies in JSON format."

func SocietiesPrompt(n int) string {
	return fmt.Sprintf("Create %d distinct societies for a fantasy world of blob creatures. "+
		"For each society, provide:\n"+
		"1. A political/social ideology\n"+
		"2. Three core values\n\n"+
		"Format as JSON array with objects containing 'ideology', and 'values' fields.", n)
}

// PersonalitySystem and PersonalityPrompt ask for one blob's character.
const PersonalitySystem = "You create personalities for fantasy creatures."

func PersonalityPrompt(name, description string) string {
	return fmt.Sprintf("Based on these properties: %s, create for the blob named %s:\n"+
		"1. A brief personality description (100-150 characters)\n"+
		"2. A list of 3-5 distinct personality traits separated by commas\n\n"+
		"Format as: 'PERSONALITY: [description] | TRAITS: [trait1, trait2, ...]'",
		description, name)
}
