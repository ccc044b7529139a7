// Status reports - a short narrated summary of the world, with a plain-text
// fallback when the narrator is unavailable.
package llm

import (
	"fmt"
	"strings"
	"time"
)

// ReportData holds the raw data needed to write a status report.
type ReportData struct {
	Year      int
	Blobs     []string
	Societies []string
	Metrics   string
	Relations string

	// Most recent headlines, oldest first.
	Headlines []string
}

// Report is one generated status report.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Year        int       `json:"year"`
	Content     string    `json:"content"`
	Narrated    bool      `json:"narrated"`
}

// StatusPrompt asks the narrator for a status report of the world.
func StatusPrompt(data *ReportData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a brief status report on the current state of the blob world in year %d. Include:\n", data.Year)
	fmt.Fprintf(&b, "1. The current situation of key blobs (%s)\n", strings.Join(data.Blobs, ", "))
	fmt.Fprintf(&b, "2. The status of the different societies (%s)\n", strings.Join(data.Societies, ", "))
	b.WriteString("3. Major ongoing friendships, conflicts, or developments\n")
	b.WriteString("4. The current relations between societies\n")
	b.WriteString("Keep it under 700 characters and focus on the most interesting elements.")
	return b.String()
}

// FallbackReport renders a status report without the narrator.
func FallbackReport(data *ReportData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "BLOB WORLD STATUS - YEAR %d\n", data.Year)
	b.WriteString("==========================\n")
	fmt.Fprintf(&b, "%d blobs across %d societies.\n\n", len(data.Blobs), len(data.Societies))

	if data.Metrics != "" {
		b.WriteString("STATE OF THE WORLD\n")
		fmt.Fprintf(&b, "%s\n\n", data.Metrics)
	}

	if len(data.Headlines) > 0 {
		b.WriteString("RECENT EVENTS\n")
		start := 0
		if len(data.Headlines) > 5 {
			start = len(data.Headlines) - 5
		}
		for _, h := range data.Headlines[start:] {
			fmt.Fprintf(&b, "- %s\n", h)
		}
		b.WriteString("\n")
	}

	if data.Relations != "" {
		fmt.Fprintf(&b, "%s\n", data.Relations)
	}
	return strings.TrimRight(b.String(), "\n")
}
