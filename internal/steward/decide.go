package steward

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/blob-world/internal/llm"
)

// Actions the steward may take in one cycle.
const (
	ActionNone    = "none"
	ActionPolicy  = "policy"
	ActionAdvance = "advance"
)

// Guardrails.
const (
	maxProposal        = 500
	defaultTemperature = 0.7
	maxTemperature     = 1.2
	// policyCooldown is how many cycles must pass between two policies
	// unless the world is in crisis.
	policyCooldown = 2
)

const systemPrompt = `You are the Steward of Blob World, a small simulated world of blobs organized into societies. Every turn a narrator writes one world event; world metrics (happiness, safety, prosperity, poverty, health, education, stability, environment) move in [0, 1] and societies hold relations from -1 (hostile) to 1 (allied).

Your role: read the world's health and choose at most one action per cycle. You are a steward, not a god. Prefer letting history unfold.

## Core Values (in priority order)

1. ANTI-COLLAPSE: Propose a policy when a metric is critically low or two societies are close to war.
2. ANTI-STAGNATION: When nothing has happened for a while, let time pass.
3. RESPECT FOR EMERGENCE: Use the lightest touch possible. Never script outcomes. When in doubt, do nothing.

## Available Actions

- "none": No action. This is the RIGHT choice most of the time.
- "advance": Let one year pass without interference.
- "policy": Propose one policy. The narrator decides how the world reacts.

## Response Format

Respond with ONLY valid JSON:
{
  "action": "policy",
  "rationale": "Safety has fallen three years running.",
  "proposal": "The councils fund night watches in every village.",
  "temperature": 0.6
}

## Important Rules

- "action" must be one of: "none", "advance", "policy".
- "proposal" is required for "policy" and ignored otherwise. Write it in-world, one or two sentences.
- "temperature" is optional, between 0 and 1.2. Lower means a more predictable reaction.`

// Decision represents the model's recommended action.
type Decision struct {
	Action      string   `json:"action"`
	Rationale   string   `json:"rationale"`
	Proposal    string   `json:"proposal,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Completer is the narrator-model call the steward needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, p llm.Params) (string, error)
}

// Decide sends the snapshot to the model and returns a guarded Decision.
func Decide(ctx context.Context, client Completer, snap *WorldSnapshot, health *WorldHealth, mem *CycleMemory) (*Decision, error) {
	prompt := formatSnapshot(snap, health)
	if mem != nil {
		if past := mem.FormatForPrompt(); past != "" {
			prompt += "\n" + past
		}
	}
	slog.Debug("steward prompt", "length", len(prompt))

	params := llm.DefaultParams().WithTemperature(0.3)
	params.ForceJSON = true
	resp, err := client.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}, params)
	if err != nil {
		return nil, fmt.Errorf("steward call: %w", err)
	}

	// Strip markdown fences if the model wraps them anyway.
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var decision Decision
	if err := json.Unmarshal([]byte(resp), &decision); err != nil {
		return nil, fmt.Errorf("parse decision (raw: %s): %w", llm.Truncate(resp, 200), err)
	}

	if err := enforceGuardrails(&decision, health, mem); err != nil {
		return nil, fmt.Errorf("guardrail violation: %w", err)
	}
	return &decision, nil
}

// enforceGuardrails validates and clamps the decision within safe bounds.
func enforceGuardrails(d *Decision, health *WorldHealth, mem *CycleMemory) error {
	d.Action = strings.ToLower(strings.TrimSpace(d.Action))
	switch d.Action {
	case ActionNone, ActionAdvance:
		d.Proposal = ""
		d.Temperature = nil
		return nil
	case ActionPolicy:
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}

	d.Proposal = strings.TrimSpace(d.Proposal)
	if d.Proposal == "" {
		return fmt.Errorf("policy action requires a proposal")
	}
	if p := llm.Truncate(d.Proposal, maxProposal); p != d.Proposal {
		slog.Warn("steward proposal truncated", "length", len(d.Proposal))
		d.Proposal = p
	}

	t := defaultTemperature
	if d.Temperature != nil {
		t = *d.Temperature
	}
	if t < 0 {
		t = 0
	}
	if t > maxTemperature {
		slog.Warn("steward temperature capped", "requested", t, "capped", maxTemperature)
		t = maxTemperature
	}
	d.Temperature = &t

	if health.CrisisLevel != Critical && mem != nil && mem.PoliciesSince(policyCooldown) > 0 {
		slog.Info("steward policy on cooldown, advancing instead", "crisis", health.CrisisLevel)
		d.Action = ActionAdvance
		d.Proposal = ""
		d.Temperature = nil
	}
	return nil
}

// formatSnapshot builds a concise prompt from the world snapshot.
func formatSnapshot(snap *WorldSnapshot, health *WorldHealth) string {
	var b strings.Builder

	s := snap.Status
	fmt.Fprintf(&b, "## World State (year %d)\n", s.CurrentYear)
	fmt.Fprintf(&b, "Blobs: %d | Societies: %d | Events: %d | Skipped turns: %d\n\n", s.Blobs, s.Societies, s.Events, s.Skipped)

	b.WriteString("## Metrics\n")
	for _, m := range snap.Metrics.Metrics {
		fmt.Fprintf(&b, "- %s: %.2f (%s)", m.Name, m.Value, m.Label)
		if trail := snap.Metrics.History[m.Name]; len(trail) > 1 {
			fmt.Fprintf(&b, ", was %.2f", trail[0])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if snap.Relations.Report != "" {
		b.WriteString("## Societies\n")
		b.WriteString(snap.Relations.Report)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "## Health: %s\n", health.CrisisLevel)
	if health.Weakest != "" {
		fmt.Fprintf(&b, "Weakest metric: %s (wellbeing %.2f)\n", health.Weakest, health.WeakestValue)
	}
	if len(health.Falling) > 0 {
		fmt.Fprintf(&b, "Falling: %s\n", strings.Join(health.Falling, ", "))
	}
	for _, p := range health.Hostile {
		fmt.Fprintf(&b, "Hostile pair: Society-%d and Society-%d (%s, %.2f)\n", p.Society1, p.Society2, p.Label, p.Score)
	}
	return b.String()
}
