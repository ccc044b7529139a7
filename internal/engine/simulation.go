// Simulation drives one blob world: initialization, narrated ticks and the
// state changes each event carries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/entropy"
	"github.com/talgya/blob-world/internal/events"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/tasks"
	"github.com/talgya/blob-world/internal/world"
)

// ErrNotInitialized is returned by operations that need a Ready world.
var ErrNotInitialized = errors.New("world must be initialized first")

// ErrInvalidArgument wraps rejected caller input.
var ErrInvalidArgument = errors.New("invalid argument")

// Size limits for Initialize.
const (
	MaxBlobs     = 100
	MaxSocieties = 20
)

// Completer produces one narrator reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, p llm.Params) (string, error)
}

// Illustrator turns a prompt into image URLs.
type Illustrator interface {
	GenerateImage(ctx context.Context, prompt, size string) ([]string, error)
}

// Recorder keeps an audit trail of a world. Failures are logged, never fatal.
type Recorder interface {
	RecordWorld(worldID string, numBlobs, numSocieties int) error
	RecordEvent(worldID string, index int, ev *events.WorldEvent, metrics []world.MetricValue) error
	RecordImage(worldID string, index int, url string) error
	SaveState(worldID string, blobs []*agents.Blob, societies []*social.Society) error
}

// TranscriptSink receives every conversation message as it is appended.
type TranscriptSink interface {
	Write(worldID, role, content string) error
}

// Options tune a Simulation. Zero fields take the DefaultOptions value.
type Options struct {
	HistoryWindow     int
	JoinProbability   float64
	InitialMetric     float64
	Seed              int64 // 0 draws a fresh seed per world
	Params            llm.Params
	StatusTemperature float64

	ImagesEnabled bool
	AsyncImages   bool
	ImageSize     string
	ImageStyle    string
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		HistoryWindow:     3,
		JoinProbability:   0.75,
		InitialMetric:     world.DefaultInitial,
		Params:            llm.DefaultParams(),
		StatusTemperature: 0.5,
		ImageSize:         "1024x1024",
		ImageStyle:        llm.DefaultStyle,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = d.HistoryWindow
	}
	if o.JoinProbability <= 0 {
		o.JoinProbability = d.JoinProbability
	}
	if o.InitialMetric <= 0 {
		o.InitialMetric = d.InitialMetric
	}
	if o.Params == (llm.Params{}) {
		o.Params = d.Params
	}
	if o.StatusTemperature <= 0 {
		o.StatusTemperature = d.StatusTemperature
	}
	if o.ImageSize == "" {
		o.ImageSize = d.ImageSize
	}
	if o.ImageStyle == "" {
		o.ImageStyle = d.ImageStyle
	}
	return o
}

// Outcome is the result of one tick.
type Outcome struct {
	Event   *events.WorldEvent `json:"event,omitempty"` // copy, safe to read without locks
	Index   int                `json:"index"`
	Year    int                `json:"year"`
	Skipped bool               `json:"skipped"`
	Reason  string             `json:"reason,omitempty"`
	Reply   string             `json:"-"`
}

// Simulation owns one world and the collaborators that move it forward.
type Simulation struct {
	Narrator    Completer
	Illustrator Illustrator       // nil disables images
	Recorder    Recorder          // nil disables the archive
	Transcript  TranscriptSink    // nil disables the transcript
	Dispatcher  *tasks.Dispatcher // runs async image jobs
	Entropy     *entropy.Client   // seed source, may be nil

	opts Options
	hub  *hub

	tickMu sync.Mutex   // serializes Initialize, ticks and reports
	mu     sync.RWMutex // guards world
	world  *World

	ticks   uint64
	skipped uint64
}

// NewSimulation creates an uninitialized simulation.
func NewSimulation(narrator Completer, opts Options) *Simulation {
	return &Simulation{
		Narrator: narrator,
		opts:     opts.withDefaults(),
		hub:      newHub(),
	}
}

// Options returns the effective tuning.
func (s *Simulation) Options() Options {
	return s.opts
}

// Read runs fn with the world under a read lock. fn must not retain w.
func (s *Simulation) Read(fn func(w *World)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.world == nil || s.world.State != Ready {
		return ErrNotInitialized
	}
	fn(s.world)
	return nil
}

// Initialized reports whether a world is Ready.
func (s *Simulation) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world != nil && s.world.State == Ready
}

// Counters returns how many ticks ran and how many of them were skipped.
func (s *Simulation) Counters() (ticks, skipped uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ticks, s.skipped
}

// Subscribe registers for world notices. Callers must Unsubscribe.
func (s *Simulation) Subscribe() (int, <-chan Notice) {
	return s.hub.subscribe()
}

// SubscribeWithBacklog is Subscribe plus the notices published before it.
func (s *Simulation) SubscribeWithBacklog() (int, []Notice, <-chan Notice) {
	return s.hub.subscribeWithBacklog()
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.hub.unsubscribe(id)
}

// Subscribers returns the number of live subscriptions.
func (s *Simulation) Subscribers() int {
	return s.hub.count()
}

// Initialize builds a fresh world, replacing any previous one. A narrator
// transport failure aborts and leaves the previous state in place.
func (s *Simulation) Initialize(ctx context.Context, numBlobs, numSocieties int) error {
	if numBlobs < 1 || numBlobs > MaxBlobs {
		return fmt.Errorf("%w: num_blobs must be between 1 and %d", ErrInvalidArgument, MaxBlobs)
	}
	if numSocieties < 0 || numSocieties > MaxSocieties {
		return fmt.Errorf("%w: num_societies must be between 0 and %d", ErrInvalidArgument, MaxSocieties)
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := time.Now()
	seed := s.opts.Seed
	if seed == 0 {
		seed = s.Entropy.Seed(ctx)
	}

	w := newWorld(agents.NewSampler(seed), s.opts.InitialMetric)
	w.rng = rand.New(rand.NewSource(seed + 900))
	w.Blobs.CreateBatch(numBlobs)

	if numSocieties > 0 {
		charters, err := s.foundSocieties(ctx, numSocieties)
		if err != nil {
			return err
		}
		w.Societies.CreateBatch(charters)
	}

	for _, b := range w.Blobs.All() {
		personality, traits, err := s.characterize(ctx, b)
		if err != nil {
			return err
		}
		if err := w.Blobs.AssignPersonality(b.ID, personality, traits); err != nil {
			return err
		}
	}

	s.assignMembership(w, rand.New(rand.NewSource(seed+500)))
	if err := w.Societies.CheckMembership(w.Blobs.Members()); err != nil {
		return fmt.Errorf("membership: %w", err)
	}

	worldID := w.ID
	w.Conversation = llm.NewConversation(func(m llm.Message) {
		s.transcribe(worldID, m)
	})
	w.Conversation.System(llm.SystemPrompt(numBlobs, 1, world.Known))
	w.Conversation.User(llm.IntroPrompt(
		w.Blobs.Roster(),
		w.Blobs.Personalities(),
		w.Societies.Describe(w.Blobs.NameOf),
	))
	w.State = Ready

	s.mu.Lock()
	s.world = w
	s.ticks, s.skipped = 0, 0
	s.mu.Unlock()

	if s.Recorder != nil {
		if err := s.Recorder.RecordWorld(w.ID, numBlobs, numSocieties); err != nil {
			slog.Warn("archive world failed", "world", w.ID, "error", err)
		}
		s.saveState(w)
	}

	s.hub.publish(Notice{Kind: NoticeInitialized, WorldID: w.ID})
	slog.Info("world initialized",
		"world", w.ID,
		"blobs", numBlobs,
		"societies", numSocieties,
		"seed", seed,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (s *Simulation) foundSocieties(ctx context.Context, n int) ([]social.Charter, error) {
	reply, err := s.Narrator.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.SocietiesSystem},
		{Role: llm.RoleUser, Content: llm.SocietiesPrompt(n)},
	}, s.foundingParams())
	if err != nil {
		return nil, fmt.Errorf("generate societies: %w", err)
	}
	charters, ok := llm.ParseCharters(reply, n)
	if !ok {
		slog.Warn("society reply unusable, using defaults", "societies", n)
	}
	return charters, nil
}

func (s *Simulation) characterize(ctx context.Context, b *agents.Blob) (string, []string, error) {
	reply, err := s.Narrator.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: llm.PersonalitySystem},
		{Role: llm.RoleUser, Content: llm.PersonalityPrompt(b.Name, b.Describe())},
	}, s.foundingParams())
	if err != nil {
		return "", nil, fmt.Errorf("generate personality for %s: %w", b.Name, err)
	}
	personality, traits := llm.ParsePersonality(reply)
	return personality, traits, nil
}

// foundingParams are the narrator params for plain-text founding calls.
func (s *Simulation) foundingParams() llm.Params {
	p := s.opts.Params
	p.ForceJSON = false
	return p
}

// assignMembership puts each blob in a random society with the configured
// probability.
func (s *Simulation) assignMembership(w *World, rng *rand.Rand) {
	n := w.Societies.Len()
	if n == 0 {
		return
	}
	for _, b := range w.Blobs.All() {
		if rng.Float64() >= s.opts.JoinProbability {
			continue
		}
		if err := w.Societies.Join(b, rng.Intn(n)); err != nil {
			slog.Warn("join failed", "blob", b.ID, "error", err)
		}
	}
}

// Advance asks the narrator for the next event of the story.
func (s *Simulation) Advance(ctx context.Context) (*Outcome, error) {
	return s.tick(ctx, llm.AdvancePrompt(), s.opts.Params)
}

// ApplyPolicy asks the narrator how the world reacts to a proposal.
func (s *Simulation) ApplyPolicy(ctx context.Context, proposal string, temperature float64) (*Outcome, error) {
	proposal = strings.TrimSpace(proposal)
	if proposal == "" {
		return nil, fmt.Errorf("%w: proposal is empty", ErrInvalidArgument)
	}
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidArgument)
	}
	return s.tick(ctx, llm.PolicyPrompt(proposal), s.opts.Params.WithTemperature(temperature))
}

func (s *Simulation) tick(ctx context.Context, prompt string, params llm.Params) (*Outcome, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	w := s.world
	if w == nil || w.State != Ready {
		s.mu.Unlock()
		return nil, ErrNotInitialized
	}
	if len(w.Events) > 0 {
		w.Conversation.System(llm.HistoryContext(w.HistorySummary(s.opts.HistoryWindow), w.Metrics.Summarize()))
	}
	w.Conversation.User(prompt)
	messages := w.Conversation.Messages()
	year := w.CurrentYear
	s.ticks++
	s.mu.Unlock()

	reply, err := s.Narrator.Complete(ctx, messages, params)
	if err != nil {
		return nil, fmt.Errorf("narrator: %w", err)
	}
	w.Conversation.Assistant(reply)

	// Registries only change under tickMu, which we hold.
	ev, err := events.NewParser(w.Blobs).Parse(reply, year)
	if err != nil {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		slog.Warn("tick skipped", "world", w.ID, "year", year, "reason", err, "reply", llm.Truncate(reply, 120))
		s.hub.publish(Notice{Kind: NoticeSkipped, WorldID: w.ID, Year: year, Reason: err.Error()})
		return &Outcome{Year: year, Skipped: true, Reason: err.Error(), Reply: reply}, nil
	}

	s.mu.Lock()
	index := s.apply(w, ev)
	s.mu.Unlock()

	s.record(w, index, ev)
	if s.imagesOn() {
		s.scheduleImage(ctx, w.ID, index, ev.Headline, ev.Details)
	}

	s.mu.RLock()
	snapshot := *ev
	s.mu.RUnlock()

	s.hub.publish(Notice{Kind: NoticeEvent, WorldID: w.ID, Year: ev.Year, Index: index, Headline: ev.Headline})
	slog.Info("event applied",
		"world", w.ID,
		"index", index,
		"year", ev.Year,
		"headline", ev.Headline,
		"impacts", len(ev.Impacts),
		"relations", len(ev.SocietyRelations),
		"metrics", len(ev.WorldMetrics),
	)
	return &Outcome{Event: &snapshot, Index: index, Year: ev.Year, Reply: reply}, nil
}

// apply mutates w with a parsed event. Caller holds s.mu.
func (s *Simulation) apply(w *World, ev *events.WorldEvent) int {
	w.CurrentYear = ev.Year
	w.Events = append(w.Events, ev)
	index := len(w.Events) - 1

	for _, rc := range ev.SocietyRelations {
		before, after, err := w.Societies.UpdateRelation(rc.Society1, rc.Society2, rc.Change)
		if err != nil {
			slog.Warn("society relation dropped", "pair", rc.Key(), "change", rc.Change, "error", err)
			continue
		}
		slog.Debug("society relation", "pair", rc.Key(), "change", rc.Change, "before", before, "after", after)
	}

	for _, mc := range ev.WorldMetrics {
		w.Metrics.Update(mc.Metric, mc.Change)
	}
	ev.MetricsHeadline = w.Metrics.Headline(ev.WorldMetrics)

	for _, imp := range ev.Impacts {
		s.applyImpact(w, ev.Year, imp)
	}
	return index
}

// applyImpact records the impact on its blob and adjusts relationships with
// every other blob it mentions.
func (s *Simulation) applyImpact(w *World, year int, imp events.Impact) {
	id, ok := imp.Target.Blob()
	if !ok {
		slog.Debug("impact on unresolved target", "key", imp.Target.Key)
		return
	}
	b, ok := w.Blobs.Get(id)
	if !ok {
		return
	}

	kind := Classify(imp.Text)
	w.Meetings.count(kind)
	b.RecordHistory(year, kind, imp.Text)

	change := relationChange(kind)
	for _, other := range events.BlobRefs(imp.Text) {
		if other == id || !w.Blobs.HasBlob(other) {
			continue
		}
		if _, err := w.Blobs.UpdateRelationship(id, other, change); err != nil {
			slog.Warn("relationship update failed", "blob", id, "other", other, "error", err)
			continue
		}
		desc := fmt.Sprintf("%s with %s: %s", kind, w.Blobs.NameOf(other), imp.Text)
		b.RecordHistory(year, Interaction, desc)
		if ob, ok := w.Blobs.Get(other); ok {
			ob.RecordHistory(year, Interaction, fmt.Sprintf("%s with %s: %s", kind, b.Name, imp.Text))
		}
	}
}

func (s *Simulation) record(w *World, index int, ev *events.WorldEvent) {
	if s.Recorder == nil {
		return
	}
	s.mu.RLock()
	err := s.Recorder.RecordEvent(w.ID, index, ev, w.Metrics.Snapshot())
	s.mu.RUnlock()
	if err != nil {
		slog.Warn("archive event failed", "world", w.ID, "index", index, "error", err)
	}
	s.saveState(w)
}

func (s *Simulation) saveState(w *World) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.Recorder.SaveState(w.ID, w.Blobs.All(), w.Societies.All()); err != nil {
		slog.Warn("archive state failed", "world", w.ID, "error", err)
	}
}

func (s *Simulation) transcribe(worldID string, m llm.Message) {
	if s.Transcript == nil {
		return
	}
	if err := s.Transcript.Write(worldID, m.Role, m.Content); err != nil {
		slog.Warn("transcript write failed", "world", worldID, "error", err)
	}
}

// StatusReport asks the narrator to summarize the world. The exchange is
// kept in the conversation. A narrator failure falls back to a plain report.
func (s *Simulation) StatusReport(ctx context.Context) (*llm.Report, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.RLock()
	w := s.world
	if w == nil || w.State != Ready {
		s.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	data := w.ReportData()
	s.mu.RUnlock()

	report := &llm.Report{GeneratedAt: time.Now().UTC(), Year: data.Year}
	prompt := llm.StatusPrompt(data)
	messages := append(w.Conversation.Messages(), llm.Message{Role: llm.RoleUser, Content: prompt})

	params := s.foundingParams().WithTemperature(s.opts.StatusTemperature)
	reply, err := s.Narrator.Complete(ctx, messages, params)
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Warn("status report fell back", "world", w.ID, "error", err)
		report.Content = llm.FallbackReport(data)
		return report, nil
	}

	w.Conversation.User(prompt)
	w.Conversation.Assistant(reply)
	report.Content = strings.TrimSpace(reply)
	report.Narrated = true
	s.hub.publish(Notice{Kind: NoticeReport, WorldID: w.ID, Year: data.Year})
	return report, nil
}

// RelationsReport lists every society pair with its relation label.
func (s *Simulation) RelationsReport() (string, error) {
	var out string
	err := s.Read(func(w *World) {
		out = w.Societies.RelationsReport()
	})
	return out, err
}
