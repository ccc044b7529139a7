// Relationship stories - a short vignette about two blobs, told outside the
// main narrator conversation.
package llm

import (
	"fmt"
	"strings"
)

// StorySystem frames the storyteller.
const StorySystem = "You write cute, fun stories about blob creatures."

// StoryBlob is one side of a relationship story.
type StoryBlob struct {
	Name        string
	Personality string
	Traits      []string
}

// Scenarios returns the stock encounters used when the caller names none.
func Scenarios(a, b string) []string {
	return []string{
		fmt.Sprintf("%s and %s meet in a food-rich area", a, b),
		fmt.Sprintf("%s and %s have to share limited resources", a, b),
		fmt.Sprintf("A storm forces %s and %s to take shelter together", a, b),
		fmt.Sprintf("%s and %s accidentally bump into each other", a, b),
		fmt.Sprintf("%s and %s discover something interesting", a, b),
	}
}

// StoryPrompt asks for a vignette of a and b meeting in scenario.
func StoryPrompt(a, b StoryBlob, relationship, scenario string) string {
	var sb strings.Builder
	sb.WriteString("Write a short, cute story about two blobs interacting:\n\n")
	for _, blob := range []StoryBlob{a, b} {
		fmt.Fprintf(&sb, "%s: %s (Traits: %s)\n", blob.Name, blob.Personality, strings.Join(blob.Traits, ", "))
	}
	fmt.Fprintf(&sb, "\n%s\n\nScenario: %s\n\n", relationship, strings.TrimSpace(scenario))
	sb.WriteString("Write a fun, simple story (400 chars max) about what happens when these two blobs interact.")
	return sb.String()
}
