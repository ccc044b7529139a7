package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/blob-world/internal/agents"
	"github.com/talgya/blob-world/internal/events"
	"github.com/talgya/blob-world/internal/social"
	"github.com/talgya/blob-world/internal/world"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordEventAndImage(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.RecordWorld("w1", 5, 2))

	ev := &events.WorldEvent{
		Year:             3,
		Headline:         "Drought",
		Details:          "The rains failed.",
		Impacts:          []events.Impact{{Target: events.KnownBlob(0), Text: "lost food"}},
		SocietyRelations: []events.RelationChange{{Society1: 0, Society2: 1, Change: social.Decrease}},
		WorldMetrics:     []world.MetricChange{{Metric: "happiness", Change: social.Decrease}},
		MetricsHeadline:  "Happiness falls to 40%",
	}
	m := world.NewMetrics(0.5)
	m.Update("happiness", social.Decrease)
	require.NoError(t, a.RecordEvent("w1", 0, ev, m.Snapshot()))
	require.NoError(t, a.RecordEvent("w2", 0, &events.WorldEvent{Year: 1, Headline: "Other"}, nil))

	last, err := a.GetMeta("w1", "last_year")
	require.NoError(t, err)
	assert.Equal(t, "3", last)

	got, err := a.RecentEvents("w1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Drought", got[0].Headline)
	assert.Equal(t, 3, got[0].Year)
	assert.Equal(t, "Happiness falls to 40%", got[0].MetricsHeadline)
	assert.Empty(t, got[0].Image)

	require.NoError(t, a.RecordImage("w1", 0, "https://img.example/0.png"))
	got, err = a.RecentEvents("w1", 10)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/0.png", got[0].Image)

	assert.Error(t, a.RecordImage("w1", 9, "x"))

	all, err := a.RecentEvents("", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Other", all[0].Headline)

	trail, err := a.MetricTrail("w1", "happiness")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.InDelta(t, 0.4, trail[0], 1e-9)
}

func TestRecordEventRejectsDuplicateIndex(t *testing.T) {
	a := openTestArchive(t)
	ev := &events.WorldEvent{Year: 1, Headline: "x"}
	require.NoError(t, a.RecordEvent("w", 0, ev, nil))
	assert.Error(t, a.RecordEvent("w", 0, ev, nil))
}

func TestSaveStateReplaces(t *testing.T) {
	a := openTestArchive(t)
	blobs := agents.NewRegistry(agents.NewSampler(1))
	blobs.CreateBatch(3)
	societies := social.NewRegistry()
	societies.CreateBatch(social.DefaultCharters(2))
	b0, _ := blobs.Get(0)
	require.NoError(t, societies.Join(b0, 1))

	require.NoError(t, a.SaveState("w", blobs.All(), societies.All()))
	require.NoError(t, a.SaveState("w", blobs.All(), societies.All()))

	var count int
	require.NoError(t, a.conn.Get(&count, "SELECT COUNT(*) FROM blobs WHERE world_id = ?", "w"))
	assert.Equal(t, 3, count)

	var sid *int
	require.NoError(t, a.conn.Get(&sid, "SELECT society_id FROM blobs WHERE world_id = ? AND id = 0", "w"))
	require.NotNil(t, sid)
	assert.Equal(t, 1, *sid)

	var members string
	require.NoError(t, a.conn.Get(&members, "SELECT members_json FROM societies WHERE world_id = ? AND id = 1", "w"))
	assert.Equal(t, "[0]", members)
}

func TestMeta(t *testing.T) {
	a := openTestArchive(t)
	v, err := a.GetMeta("w", "current_year")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, a.SaveMeta("w", "current_year", "4"))
	require.NoError(t, a.SaveMeta("w", "current_year", "5"))
	v, err = a.GetMeta("w", "current_year")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
}

func TestTranscriptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTranscriptLog(dir)
	require.NoError(t, l.Write("w1", "system", "rules"))
	require.NoError(t, l.Write("w1", "user", "advance"))
	require.NoError(t, l.Write("w2", "system", "other world"))
	require.NoError(t, l.Close())

	entries, err := ReadTranscript(l.Path("w1"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rules", entries[0].Content)
	assert.Equal(t, 0, entries[0].Seq)
	assert.Equal(t, "user", entries[1].Role)
	assert.Equal(t, 1, entries[1].Seq)

	entries, err = ReadTranscript(l.Path("w2"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "w2", entries[0].WorldID)
}
