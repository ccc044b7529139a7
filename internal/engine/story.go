package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/social"
)

const storyTemperature = 0.7

// Meetings tallies classified encounters: event impacts and relationship
// stories.
type Meetings struct {
	Friendly   int `json:"friendly"`
	Unfriendly int `json:"unfriendly"`
	Neutral    int `json:"neutral"`
}

func (m *Meetings) count(kind string) {
	switch kind {
	case Positive:
		m.Friendly++
	case Negative:
		m.Unfriendly++
	default:
		m.Neutral++
	}
}

// Story is a narrated encounter between two blobs.
type Story struct {
	Blob1        int     `json:"blob1"`
	Blob2        int     `json:"blob2"`
	Year         int     `json:"year"`
	Scenario     string  `json:"scenario"`
	Text         string  `json:"story"`
	Sentiment    string  `json:"sentiment"`
	Relationship float64 `json:"relationship"`
	Label        string  `json:"label"`
}

// RelationshipStory narrates an encounter between blobs a and b and moves
// their relationship by the story's sentiment. A blank scenario picks one of
// llm.Scenarios. The story is not part of the narrator conversation.
func (s *Simulation) RelationshipStory(ctx context.Context, a, b int, scenario string) (*Story, error) {
	if a == b {
		return nil, fmt.Errorf("%w: a blob cannot meet itself", ErrInvalidArgument)
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.RLock()
	w := s.world
	if w == nil || w.State != Ready {
		s.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	ba, okA := w.Blobs.Get(a)
	bb, okB := w.Blobs.Get(b)
	if !okA || !okB {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: unknown blob", ErrInvalidArgument)
	}

	scenario = strings.TrimSpace(scenario)
	if scenario == "" {
		stock := llm.Scenarios(ba.Name, bb.Name)
		scenario = stock[w.rng.Intn(len(stock))]
	}
	score := ba.Relationships[b]
	relationship := fmt.Sprintf("%s regards %s as: %s (%+.2f).", ba.Name, bb.Name, social.BlobLadder.Describe(score), score)
	prompt := llm.StoryPrompt(storyBlob(ba), storyBlob(bb), relationship, scenario)
	year := w.CurrentYear
	s.mu.RUnlock()

	reply, err := s.Narrator.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.StorySystem},
		{Role: llm.RoleUser, Content: prompt},
	}, s.foundingParams().WithTemperature(storyTemperature))
	if err != nil {
		return nil, fmt.Errorf("narrator: %w", err)
	}
	text := strings.TrimSpace(reply)
	if text == "" {
		return nil, errors.New("narrator: empty story")
	}
	kind := Classify(text)

	s.mu.Lock()
	after, err := w.Blobs.UpdateRelationship(a, b, relationChange(kind))
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	w.Meetings.count(kind)
	ba.RecordHistory(year, Interaction, fmt.Sprintf("%s story with %s: %s", kind, bb.Name, scenario))
	bb.RecordHistory(year, Interaction, fmt.Sprintf("%s story with %s: %s", kind, ba.Name, scenario))
	s.mu.Unlock()

	if s.Recorder != nil {
		s.saveState(w)
	}
	s.hub.publish(Notice{Kind: NoticeStory, WorldID: w.ID, Year: year, Headline: scenario})
	slog.Info("relationship story", "world", w.ID, "blob1", a, "blob2", b, "sentiment", kind, "relationship", after)

	return &Story{
		Blob1:        a,
		Blob2:        b,
		Year:         year,
		Scenario:     scenario,
		Text:         text,
		Sentiment:    kind,
		Relationship: after,
		Label:        social.BlobLadder.Describe(after),
	}, nil
}

func storyBlob(b *agents.Blob) llm.StoryBlob {
	return llm.StoryBlob{Name: b.Name, Personality: b.Personality, Traits: append([]string(nil), b.Traits...)}
}
