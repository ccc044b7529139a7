package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/events"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/tasks"
	"github.com/talgya/blob-world/internal/world"
)

const societiesReply = `[
  {"ideology": "Collectivist Harmony", "values": ["sharing", "peace", "community"]},
  {"ideology": "Free Traders", "values": ["commerce", "liberty", "ambition"]}
]`

const personalityReply = "PERSONALITY: A curious wanderer who loves puzzles | TRAITS: curious, patient, stubborn"

const droughtReply = `{"year": 3, "headline": "Drought", "impacts": {"blob_0": "lost food, sad"}, "world_metrics":[{"metric":"happiness","change":"decrease"}]}`

// fakeNarrator answers founding prompts with fixed replies and ticks from a queue.
type fakeNarrator struct {
	mu      sync.Mutex
	ticks   []string
	err     error
	calls   [][]llm.Message
	params  []llm.Params
	failAll bool
}

func (f *fakeNarrator) Complete(ctx context.Context, messages []llm.Message, p llm.Params) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	f.params = append(f.params, p)
	if f.failAll {
		return "", f.err
	}

	switch messages[0].Content {
	case llm.SocietiesSystem:
		return societiesReply, nil
	case llm.PersonalitySystem:
		return personalityReply, nil
	}
	if f.err != nil {
		return "", f.err
	}
	if len(f.ticks) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.ticks[0]
	f.ticks = f.ticks[1:]
	return reply, nil
}

func (f *fakeNarrator) queue(replies ...string) {
	f.mu.Lock()
	f.ticks = append(f.ticks, replies...)
	f.mu.Unlock()
}

func (f *fakeNarrator) lastCall() ([]llm.Message, llm.Params) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1], f.params[len(f.params)-1]
}

type fakeIllustrator struct {
	mu      sync.Mutex
	urls    []string
	err     error
	prompts []string
}

func (f *fakeIllustrator) GenerateImage(ctx context.Context, prompt, size string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.urls, f.err
}

type fakeRecorder struct {
	mu     sync.Mutex
	worlds []string
	events []int
	images map[int]string
	saves  int
}

func (f *fakeRecorder) RecordWorld(worldID string, numBlobs, numSocieties int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.worlds = append(f.worlds, worldID)
	return nil
}

func (f *fakeRecorder) RecordEvent(worldID string, index int, ev *events.WorldEvent, metrics []world.MetricValue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, index)
	return nil
}

func (f *fakeRecorder) RecordImage(worldID string, index int, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.images == nil {
		f.images = map[int]string{}
	}
	f.images[index] = url
	return nil
}

func (f *fakeRecorder) SaveState(worldID string, blobs []*agents.Blob, societies []*social.Society) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	return nil
}

func newTestSim(t *testing.T, opts Options) (*Simulation, *fakeNarrator) {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	n := &fakeNarrator{}
	return NewSimulation(n, opts), n
}

func initialized(t *testing.T, blobs, societies int) (*Simulation, *fakeNarrator) {
	t.Helper()
	sim, n := newTestSim(t, Options{})
	require.NoError(t, sim.Initialize(context.Background(), blobs, societies))
	return sim, n
}

func TestInitializeFiveBlobsTwoSocieties(t *testing.T) {
	sim, _ := initialized(t, 5, 2)

	require.NoError(t, sim.Read(func(w *World) {
		assert.Equal(t, Ready, w.State)
		assert.Equal(t, 0, w.CurrentYear)
		assert.NotEmpty(t, w.ID)

		blobs := w.Blobs.All()
		require.Len(t, blobs, 5)
		for i, b := range blobs {
			assert.Equal(t, i, b.ID)
			assert.Equal(t, "A curious wanderer who loves puzzles", b.Personality)
			assert.Equal(t, []string{"curious", "patient", "stubborn"}, b.Traits)

			sid, ok := b.CurrentSociety()
			if !ok {
				continue
			}
			assert.Contains(t, []int{0, 1}, sid)
			s, found := w.Societies.Get(sid)
			require.True(t, found)
			assert.True(t, s.HasMember(b.ID))
		}

		societies := w.Societies.All()
		require.Len(t, societies, 2)
		assert.Equal(t, 0, societies[0].ID)
		assert.Equal(t, 1, societies[1].ID)
		assert.Equal(t, "Collectivist Harmony", societies[0].Ideology)
		for _, s := range societies {
			for _, m := range s.Members {
				b, ok := w.Blobs.Get(m)
				require.True(t, ok)
				sid, ok := b.CurrentSociety()
				require.True(t, ok)
				assert.Equal(t, s.ID, sid)
			}
		}

		msgs := w.Conversation.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, llm.RoleSystem, msgs[0].Role)
		assert.Equal(t, llm.RoleUser, msgs[1].Role)
		assert.Contains(t, msgs[1].Content, "Blob-4")
	}))
}

func TestInitializeRejectsBadSizes(t *testing.T) {
	sim, _ := newTestSim(t, Options{})
	assert.ErrorIs(t, sim.Initialize(context.Background(), 0, 2), ErrInvalidArgument)
	assert.ErrorIs(t, sim.Initialize(context.Background(), 5, -1), ErrInvalidArgument)
	assert.ErrorIs(t, sim.Initialize(context.Background(), MaxBlobs+1, 2), ErrInvalidArgument)
	assert.False(t, sim.Initialized())
}

func TestInitializeTransportFailure(t *testing.T) {
	sim, n := newTestSim(t, Options{})
	n.failAll = true
	n.err = errors.New("connection refused")

	err := sim.Initialize(context.Background(), 3, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, sim.Initialized())
	assert.ErrorIs(t, sim.Read(func(*World) {}), ErrNotInitialized)
}

func TestInitializeSameSeedSameBlobs(t *testing.T) {
	a, _ := initialized(t, 6, 2)
	b, _ := initialized(t, 6, 2)

	var pa, pb []map[string]string
	require.NoError(t, a.Read(func(w *World) {
		for _, bl := range w.Blobs.All() {
			pa = append(pa, bl.Properties)
		}
	}))
	require.NoError(t, b.Read(func(w *World) {
		for _, bl := range w.Blobs.All() {
			pb = append(pb, bl.Properties)
		}
	}))
	assert.Equal(t, pa, pb)
}

func TestAdvanceBeforeInitialize(t *testing.T) {
	sim, _ := newTestSim(t, Options{})
	_, err := sim.Advance(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = sim.ApplyPolicy(context.Background(), "tax the rich", 0.7)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = sim.StatusReport(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = sim.RelationsReport()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestAdvanceAppliesDroughtEvent(t *testing.T) {
	sim, n := initialized(t, 5, 2)
	sim.world.CurrentYear = 2
	n.queue(droughtReply)

	out, err := sim.Advance(context.Background())
	require.NoError(t, err)
	require.False(t, out.Skipped)
	require.NotNil(t, out.Event)
	assert.Equal(t, 0, out.Index)
	assert.Equal(t, "Drought", out.Event.Headline)
	assert.Equal(t, events.DefaultDetails, out.Event.Details)
	assert.NotEmpty(t, out.Event.MetricsHeadline)

	require.NoError(t, sim.Read(func(w *World) {
		assert.Equal(t, 3, w.CurrentYear)
		assert.InDelta(t, 0.4, w.Metrics.Value("happiness"), 1e-9)
		require.Len(t, w.Events, 1)

		b, _ := w.Blobs.Get(0)
		require.NotEmpty(t, b.History)
		last := b.History[len(b.History)-1]
		assert.Equal(t, Negative, last.Type)
		assert.Equal(t, 3, last.Year)
		assert.Equal(t, "lost food, sad", last.Description)
	}))
}

func TestParseFailureLeavesStateUnchanged(t *testing.T) {
	sim, n := initialized(t, 4, 2)
	n.queue(`{"year": 1, "headline": "Founding", "society_relations": [{"society1": 0, "society2": 1, "change": "increase"}]}`)
	_, err := sim.Advance(context.Background())
	require.NoError(t, err)

	var year, eventCount, convLen int
	var relations map[int]float64
	require.NoError(t, sim.Read(func(w *World) {
		year = w.CurrentYear
		eventCount = len(w.Events)
		convLen = w.Conversation.Len()
		s, _ := w.Societies.Get(0)
		relations = map[int]float64{}
		for k, v := range s.Relations {
			relations[k] = v
		}
	}))

	n.queue("I cannot comply")
	out, err := sim.Advance(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Nil(t, out.Event)
	assert.NotEmpty(t, out.Reason)

	require.NoError(t, sim.Read(func(w *World) {
		assert.Equal(t, year, w.CurrentYear)
		assert.Len(t, w.Events, eventCount)
		s, _ := w.Societies.Get(0)
		assert.Equal(t, relations, s.Relations)

		// history recap, prompt and the bad reply stay in the conversation
		assert.Equal(t, convLen+3, w.Conversation.Len())
		last, _ := w.Conversation.Last()
		assert.Equal(t, "I cannot comply", last.Content)
	}))

	ticks, skipped := sim.Counters()
	assert.Equal(t, uint64(2), ticks)
	assert.Equal(t, uint64(1), skipped)
}

func TestNarratorFailureIsAnError(t *testing.T) {
	sim, n := initialized(t, 3, 1)
	n.err = errors.New("upstream 500")

	_, err := sim.Advance(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 500")
}

func TestSocietyRelationsApplyBothSides(t *testing.T) {
	sim, n := initialized(t, 3, 2)
	n.queue(`{"year": 1, "headline": "Treaty", "society_relations": [
		{"society1": 1, "society2": 0, "change": "big_increase"},
		{"society1": 0, "society2": 7, "change": "decrease"}
	]}`)

	out, err := sim.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Event.SocietyRelations, 2)

	require.NoError(t, sim.Read(func(w *World) {
		s0, _ := w.Societies.Get(0)
		s1, _ := w.Societies.Get(1)
		assert.InDelta(t, 0.25, s0.Relation(1), 1e-9)
		assert.InDelta(t, 0.25, s1.Relation(0), 1e-9)
		_, ok := s0.Relations[7]
		assert.False(t, ok)
	}))

	report, err := sim.RelationsReport()
	require.NoError(t, err)
	assert.NotEmpty(t, report)
}

func TestMentionsAdjustRelationships(t *testing.T) {
	sim, n := initialized(t, 3, 1)
	n.queue(`{"year": 1, "headline": "Harvest", "impacts": {
		"blob_0": "Blob-1 helped with the harvest and was happy",
		"blob_2": "argued with Blob-0, angry and hurt",
		"The Baker": "baked bread"
	}}`)

	out, err := sim.Advance(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Event.Impacts, 3)

	require.NoError(t, sim.Read(func(w *World) {
		b0, _ := w.Blobs.Get(0)
		b1, _ := w.Blobs.Get(1)
		b2, _ := w.Blobs.Get(2)

		assert.InDelta(t, 0.1, b0.Relationships[1], 1e-9)
		assert.InDelta(t, 0.1, b1.Relationships[0], 1e-9)
		assert.InDelta(t, -0.1, b2.Relationships[0], 1e-9)
		assert.InDelta(t, -0.1, b0.Relationships[2], 1e-9)

		assert.Equal(t, Positive, b0.History[0].Type)
		assert.Equal(t, Interaction, b0.History[1].Type)
		require.Len(t, b1.History, 1)
		assert.Equal(t, Interaction, b1.History[0].Type)
		assert.Contains(t, b1.History[0].Description, "Blob-0")
		assert.Equal(t, Negative, b2.History[0].Type)

		assert.Equal(t, Meetings{Friendly: 1, Unfriendly: 1}, w.Meetings, "unresolved targets are not counted")
	}))
}

func TestRelationshipStory(t *testing.T) {
	sim, n := initialized(t, 3, 1)
	sub, ch := sim.Subscribe()
	defer sim.Unsubscribe(sub)

	n.queue("Blob-0 and Blob-2 shared a mushroom and became friends, though Blob-2 was sad to see it go.")
	story, err := sim.RelationshipStory(context.Background(), 0, 2, "  They find one mushroom  ")
	require.NoError(t, err)
	assert.Equal(t, "They find one mushroom", story.Scenario)
	assert.Equal(t, Positive, story.Sentiment)
	assert.InDelta(t, 0.1, story.Relationship, 1e-9)
	assert.Equal(t, "acquaintance", story.Label)

	msgs, params := n.lastCall()
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.StorySystem, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "Scenario: They find one mushroom")
	assert.Contains(t, msgs[1].Content, "Blob-2: A curious wanderer who loves puzzles (Traits: curious, patient, stubborn)")
	assert.Contains(t, msgs[1].Content, "Blob-0 regards Blob-2 as: neutral")
	assert.InDelta(t, storyTemperature, params.Temperature, 1e-9)
	assert.False(t, params.ForceJSON)

	n.queue("They had a fight and both went home angry.")
	story, err = sim.RelationshipStory(context.Background(), 2, 0, "")
	require.NoError(t, err)
	assert.Equal(t, Negative, story.Sentiment)
	assert.InDelta(t, 0.0, story.Relationship, 1e-9)
	assert.Contains(t, llm.Scenarios("Blob-2", "Blob-0"), story.Scenario)
	msgs, _ = n.lastCall()
	assert.Contains(t, msgs[1].Content, "Blob-2 regards Blob-0 as: acquaintance")

	n.queue("They watched the clouds.")
	story, err = sim.RelationshipStory(context.Background(), 1, 2, "clouds")
	require.NoError(t, err)
	assert.Equal(t, Neutral, story.Sentiment)

	require.NoError(t, sim.Read(func(w *World) {
		b0, _ := w.Blobs.Get(0)
		b2, _ := w.Blobs.Get(2)
		assert.InDelta(t, 0.0, b0.Relationships[2], 1e-9)
		assert.InDelta(t, 0.0, b2.Relationships[0], 1e-9)
		assert.Equal(t, Meetings{Friendly: 1, Unfriendly: 1, Neutral: 1}, w.Meetings)
		require.Len(t, b0.History, 2)
		assert.Equal(t, Interaction, b0.History[0].Type)
		assert.Contains(t, b0.History[0].Description, "positive story with Blob-2")
		assert.Empty(t, w.Events)
		assert.Len(t, w.Conversation.Messages(), 2, "stories stay out of the conversation")
	}))

	notice := <-ch
	assert.Equal(t, NoticeStory, notice.Kind)
	assert.Equal(t, "They find one mushroom", notice.Headline)
}

func TestRelationshipStoryErrors(t *testing.T) {
	sim, n := newTestSim(t, Options{})
	_, err := sim.RelationshipStory(context.Background(), 0, 1, "")
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, sim.Initialize(context.Background(), 2, 0))
	_, err = sim.RelationshipStory(context.Background(), 1, 1, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = sim.RelationshipStory(context.Background(), 0, 7, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = sim.RelationshipStory(context.Background(), 0, 1, "")
	assert.ErrorContains(t, err, "no scripted reply")

	n.queue("   ")
	_, err = sim.RelationshipStory(context.Background(), 0, 1, "")
	assert.ErrorContains(t, err, "empty story")

	require.NoError(t, sim.Read(func(w *World) {
		b0, _ := w.Blobs.Get(0)
		assert.Empty(t, b0.Relationships)
		assert.Equal(t, Meetings{}, w.Meetings)
	}))
}

func TestHistoryRecapPrecedesLaterTicks(t *testing.T) {
	sim, n := initialized(t, 2, 1)
	n.queue(`{"year": 1, "headline": "Dawn"}`, `{"year": 2, "headline": "Noon"}`)

	_, err := sim.Advance(context.Background())
	require.NoError(t, err)
	msgs, _ := n.lastCall()
	for _, m := range msgs {
		assert.NotContains(t, m.Content, "Recent world history")
	}

	_, err = sim.Advance(context.Background())
	require.NoError(t, err)
	msgs, _ = n.lastCall()
	recap := msgs[len(msgs)-2]
	assert.Equal(t, llm.RoleSystem, recap.Role)
	assert.Contains(t, recap.Content, "Recent world history")
	assert.Contains(t, recap.Content, "Year 1: Dawn")
	assert.Contains(t, recap.Content, "Happiness")
	assert.Equal(t, llm.RoleUser, msgs[len(msgs)-1].Role)
}

func TestHistorySummaryWindow(t *testing.T) {
	w := &World{}
	assert.Equal(t, NoHistory, w.HistorySummary(3))

	for i, h := range []string{"One", "Two", "Three", "Four", "Five"} {
		w.Events = append(w.Events, &events.WorldEvent{Year: i + 1, Headline: h})
	}
	got := w.HistorySummary(3)
	assert.Contains(t, got, "Year 1: One")
	assert.NotContains(t, got, "Two")
	assert.NotContains(t, got, "Three")
	assert.Contains(t, got, "Year 4: Four")
	assert.Contains(t, got, "Year 5: Five")

	assert.Contains(t, w.HistorySummary(10), "Three")

	one := w.HistorySummary(1)
	assert.Contains(t, one, "Year 1: One")
	assert.NotContains(t, one, "Five")
	assert.Equal(t, one, w.HistorySummary(0))
}

func TestApplyPolicy(t *testing.T) {
	sim, n := initialized(t, 3, 2)

	_, err := sim.ApplyPolicy(context.Background(), "   ", 0.7)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = sim.ApplyPolicy(context.Background(), "free bread", 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	n.queue(`{"year": 1, "headline": "Bread for all", "world_metrics": [{"metric": "happiness", "change": "big_increase"}]}`)
	out, err := sim.ApplyPolicy(context.Background(), "free bread", 0.2)
	require.NoError(t, err)
	assert.Equal(t, "Bread for all", out.Event.Headline)

	msgs, params := n.lastCall()
	assert.Contains(t, msgs[len(msgs)-1].Content, "free bread")
	assert.InDelta(t, 0.2, params.Temperature, 1e-9)
	assert.InDelta(t, 0.3, params.FrequencyPenalty, 1e-9)
}

func TestInlineImageFillsEvent(t *testing.T) {
	sim, n := newTestSim(t, Options{ImagesEnabled: true})
	ill := &fakeIllustrator{urls: []string{"https://img.example/1.png", "https://img.example/2.png"}}
	rec := &fakeRecorder{}
	sim.Illustrator = ill
	sim.Recorder = rec
	require.NoError(t, sim.Initialize(context.Background(), 2, 1))

	n.queue(`{"year": 1, "headline": "Festival", "details": "Lanterns everywhere"}`)
	out, err := sim.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/1.png", out.Event.ImageURL)

	require.Len(t, ill.prompts, 1)
	assert.Contains(t, ill.prompts[0], "Festival")
	assert.Contains(t, ill.prompts[0], llm.DefaultStyle)
	assert.LessOrEqual(t, len(ill.prompts[0]), llm.ImagePromptBudget)

	assert.Len(t, rec.worlds, 1)
	assert.Equal(t, []int{0}, rec.events)
	assert.Equal(t, "https://img.example/1.png", rec.images[0])
	assert.Equal(t, 2, rec.saves)
}

func TestImageFailureKeepsEvent(t *testing.T) {
	for name, ill := range map[string]*fakeIllustrator{
		"error": {err: errors.New("content policy")},
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			sim, n := newTestSim(t, Options{ImagesEnabled: true})
			sim.Illustrator = ill
			require.NoError(t, sim.Initialize(context.Background(), 2, 1))

			n.queue(`{"year": 1, "headline": "Storm"}`)
			out, err := sim.Advance(context.Background())
			require.NoError(t, err)
			assert.Empty(t, out.Event.ImageURL)
			require.NoError(t, sim.Read(func(w *World) {
				assert.Len(t, w.Events, 1)
			}))
		})
	}
}

func TestAsyncImageThroughDispatcher(t *testing.T) {
	sim, n := newTestSim(t, Options{ImagesEnabled: true, AsyncImages: true})
	sim.Illustrator = &fakeIllustrator{urls: []string{"https://img.example/a.png"}}
	d := tasks.New(tasks.Config{Workers: 1})
	sim.Dispatcher = d
	require.NoError(t, sim.Initialize(context.Background(), 2, 1))

	id, ch := sim.Subscribe()
	defer sim.Unsubscribe(id)

	n.queue(`{"year": 1, "headline": "Comet"}`)
	_, err := sim.Advance(context.Background())
	require.NoError(t, err)
	d.Close()

	require.NoError(t, sim.Read(func(w *World) {
		assert.Equal(t, "https://img.example/a.png", w.Events[0].ImageURL)
	}))

	kinds := map[string]bool{}
	timeout := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case notice := <-ch:
			kinds[notice.Kind] = true
		case <-timeout:
			t.Fatalf("missing notices, got %v", kinds)
		}
	}
	assert.True(t, kinds[NoticeEvent])
	assert.True(t, kinds[NoticeImage])
}

func TestStatusReport(t *testing.T) {
	sim, n := initialized(t, 3, 2)
	before := 0
	require.NoError(t, sim.Read(func(w *World) { before = w.Conversation.Len() }))

	n.queue("All is calm in the blob world.")
	report, err := sim.StatusReport(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Narrated)
	assert.Equal(t, "All is calm in the blob world.", report.Content)
	_, params := n.lastCall()
	assert.InDelta(t, 0.5, params.Temperature, 1e-9)
	require.NoError(t, sim.Read(func(w *World) {
		assert.Equal(t, before+2, w.Conversation.Len())
	}))

	n.err = errors.New("timeout")
	report, err = sim.StatusReport(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Narrated)
	assert.True(t, strings.HasPrefix(report.Content, "BLOB WORLD STATUS - YEAR 0"))
	require.NoError(t, sim.Read(func(w *World) {
		assert.Equal(t, before+2, w.Conversation.Len())
	}))
}

func TestReinitializeReplacesWorld(t *testing.T) {
	sim, n := initialized(t, 2, 1)
	n.queue(`{"year": 5, "headline": "Old times"}`)
	_, err := sim.Advance(context.Background())
	require.NoError(t, err)

	var firstID string
	require.NoError(t, sim.Read(func(w *World) { firstID = w.ID }))

	require.NoError(t, sim.Initialize(context.Background(), 4, 2))
	require.NoError(t, sim.Read(func(w *World) {
		assert.NotEqual(t, firstID, w.ID)
		assert.Equal(t, 0, w.CurrentYear)
		assert.Empty(t, w.Events)
		assert.Equal(t, 4, w.Blobs.Len())
	}))
}

func TestTranscriptReceivesEveryMessage(t *testing.T) {
	sim, n := newTestSim(t, Options{})
	sink := &memorySink{}
	sim.Transcript = sink
	require.NoError(t, sim.Initialize(context.Background(), 2, 1))
	n.queue(`{"year": 1, "headline": "Hello"}`)
	_, err := sim.Advance(context.Background())
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{llm.RoleSystem, llm.RoleUser, llm.RoleUser, llm.RoleAssistant}, sink.roles)
}

type memorySink struct {
	mu    sync.Mutex
	roles []string
}

func (m *memorySink) Write(worldID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = append(m.roles, role)
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"lost food, sad", Negative},
		{"Found a new home and is happy", Positive},
		{"Watched the clouds", Neutral},
		{"happy but lost", Positive},
		{"helped Blob-1 but lost food", Positive},
		{"lost food and sad, then grateful", Positive},
		{"they fought all winter", Negative},
		{"SCARED and ANGRY", Negative},
		{"unhappy", Neutral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.text), tt.text)
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := newHub()
	id, ch := h.subscribe()
	for i := 0; i < 100; i++ {
		h.publish(Notice{Kind: NoticeEvent, Index: i})
	}
	assert.Len(t, ch, 16)
	_, backlog, _ := h.subscribeWithBacklog()
	assert.Len(t, backlog, recentNotices)
	assert.Equal(t, 100-recentNotices, backlog[0].Index)
	assert.Equal(t, 2, h.count())

	h.unsubscribe(id)
	h.unsubscribe(id)
	assert.Equal(t, 1, h.count())
}

func TestSubscribeWithBacklog(t *testing.T) {
	h := newHub()
	h.publish(Notice{Kind: NoticeInitialized})
	h.publish(Notice{Kind: NoticeEvent, Index: 0})

	id, backlog, ch := h.subscribeWithBacklog()
	defer h.unsubscribe(id)
	require.Len(t, backlog, 2)
	assert.Equal(t, NoticeInitialized, backlog[0].Kind)
	assert.Len(t, ch, 0)

	h.publish(Notice{Kind: NoticeEvent, Index: 1})
	assert.Equal(t, 1, (<-ch).Index)

	_, later, _ := h.subscribeWithBacklog()
	assert.Len(t, later, 3)
}

func TestRunnerAdvancesUntilStopped(t *testing.T) {
	sim, n := initialized(t, 2, 1)
	for i := 1; i <= 50; i++ {
		n.queue(`{"year": 1, "headline": "Tick"}`)
	}

	var mu sync.Mutex
	count := 0
	r := NewRunner(sim, 5*time.Millisecond)
	r.OnOutcome = func(*Outcome) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	go r.Run(context.Background())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, time.Second, 5*time.Millisecond)

	r.SetSpeed(0)
	assert.Equal(t, 0.0, r.Speed())
	r.Stop()
	assert.False(t, r.Running())
}
