package steward

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	maxRecords    = 10
	promptRecords = 5 // how many recent records go into the prompt
)

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	WorldID     string  `json:"world_id"`
	Year        int     `json:"year"`
	Action      string  `json:"action"`
	CrisisLevel string  `json:"crisis_level"`
	Weakest     string  `json:"weakest,omitempty"`
	Wellbeing   float64 `json:"wellbeing"`
	Proposal    string  `json:"proposal,omitempty"`
	Rationale   string  `json:"rationale,omitempty"`
	Headline    string  `json:"headline,omitempty"`
}

// CycleMemory keeps the most recent cycle records, optionally on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads the memory file at path. A missing or corrupt file
// gives empty memory. An empty path keeps memory in process only.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	if path == "" {
		return mem
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("steward memory unreadable, starting fresh", "error", err)
		}
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk. A no-op without a path.
func (m *CycleMemory) Save() error {
	if m.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal steward memory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write steward memory: %w", err)
	}
	return nil
}

// Track forgets every record of a world other than worldID.
func (m *CycleMemory) Track(worldID string) {
	if n := len(m.Records); n > 0 && m.Records[n-1].WorldID != worldID {
		slog.Info("steward sees a new world, forgetting past cycles", "world", worldID)
		m.Records = nil
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// PoliciesSince counts policies among the last n records.
func (m *CycleMemory) PoliciesSince(n int) int {
	start := len(m.Records) - n
	if start < 0 {
		start = 0
	}
	count := 0
	for _, r := range m.Records[start:] {
		if r.Action == ActionPolicy {
			count++
		}
	}
	return count
}

// FormatForPrompt summarizes the last few cycles.
func (m *CycleMemory) FormatForPrompt() string {
	if len(m.Records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Recent Steward Cycles\n")

	start := 0
	if len(m.Records) > promptRecords {
		start = len(m.Records) - promptRecords
	}
	for _, r := range m.Records[start:] {
		fmt.Fprintf(&b, "- Year %d: action=%s, crisis=%s", r.Year, r.Action, r.CrisisLevel)
		if r.Weakest != "" {
			fmt.Fprintf(&b, ", weakest=%s (%.2f)", r.Weakest, r.Wellbeing)
		}
		if r.Proposal != "" {
			fmt.Fprintf(&b, ", proposal=%q", r.Proposal)
		}
		if r.Headline != "" {
			fmt.Fprintf(&b, ", outcome=%q", r.Headline)
		}
		b.WriteString("\n")
	}
	return b.String()
}
