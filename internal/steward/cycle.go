package steward

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoWorld means the server has not been initialized yet.
var ErrNoWorld = errors.New("no world to steer")

// Steward runs observe, decide, act cycles against one server.
type Steward struct {
	Observer *Observer
	Actor    *Actor
	Model    Completer
	Memory   *CycleMemory
}

// RunCycle executes one observe → decide → act cycle and records it.
func (s *Steward) RunCycle(ctx context.Context) (*CycleRecord, error) {
	snap, err := s.Observer.Observe(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.Status.Ready() {
		return nil, ErrNoWorld
	}
	s.Memory.Track(snap.Status.WorldID)

	health := Triage(snap)
	slog.Info("observation complete",
		"year", snap.Status.CurrentYear,
		"crisis", health.CrisisLevel,
		"weakest", health.Weakest,
		"falling", len(health.Falling),
		"hostile", len(health.Hostile),
	)

	decision, err := Decide(ctx, s.Model, snap, health, s.Memory)
	if err != nil {
		return nil, err
	}
	slog.Info("decision made", "action", decision.Action, "rationale", decision.Rationale)

	rec := CycleRecord{
		WorldID:     snap.Status.WorldID,
		Year:        snap.Status.CurrentYear,
		Action:      decision.Action,
		CrisisLevel: health.CrisisLevel,
		Weakest:     health.Weakest,
		Wellbeing:   health.WeakestValue,
		Proposal:    decision.Proposal,
		Rationale:   decision.Rationale,
	}

	result, err := s.Actor.Act(ctx, decision)
	if err != nil {
		return nil, err
	}
	if result != nil {
		rec.Headline = result.Headline()
		if result.Year > 0 {
			rec.Year = result.Year
		}
		slog.Info("action executed", "status", result.Status, "year", result.Year, "headline", rec.Headline, "reason", result.Reason)
	}

	s.Memory.Record(rec)
	if err := s.Memory.Save(); err != nil {
		slog.Error("steward memory save failed", "error", err)
	}
	return &rec, nil
}
