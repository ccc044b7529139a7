package llm

import "fmt"

// DefaultStyle is the fixed visual descriptor every illustration shares.
const DefaultStyle = "gelatinous blob creatures with simple expressive faces and colorful bodies"

// ImagePromptBudget is the builder's own length limit, below MaxImagePrompt.
const ImagePromptBudget = 900

// BuildImagePrompt renders the illustration prompt for an event. The output
// is deterministic for its inputs and never longer than budget characters.
func BuildImagePrompt(style, headline, details string, budget int) string {
	if style == "" {
		style = DefaultStyle
	}
	if budget <= 0 {
		budget = ImagePromptBudget
	}
	prompt := fmt.Sprintf("Create a single cohesive illustration of an event titled '%s' "+
		"featuring multiple blob characters with THIS EXACT appearance style: %s. "+
		"The scene depicts: %s. "+
		"Ensure all blobs in the image look like variations of the described blob style, "+
		"maintaining consistent proportions, texture, and design language, just with different "+
		"colors and expressions to show different characters. "+
		"Scene should be bright and whimsical with a fantasy world setting. "+
		"Focus on showing the emotion and action of the event. "+
		"No text, no comic panels, just one clean scene with vibrant colors.",
		headline, style, details)
	return Truncate(prompt, budget)
}
