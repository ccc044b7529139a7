package social

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateScoreStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	score := 0.0
	for i := 0; i < 2000; i++ {
		score = UpdateScore(score, Changes[rng.Intn(len(Changes))])
		require.GreaterOrEqual(t, score, MinScore)
		require.LessOrEqual(t, score, MaxScore)
	}
}

func TestUpdateScore(t *testing.T) {
	assert.Equal(t, 0.3, UpdateScore(0.3, NoChange))
	assert.InDelta(t, 0.0, UpdateScore(UpdateScore(0, BigIncrease), BigDecrease), 1e-12)
	assert.Equal(t, MaxScore, UpdateScore(0.9, BigIncrease))
	assert.Equal(t, MinScore, UpdateScore(-0.95, Decrease))
	assert.InDelta(t, -0.1, UpdateScore(0, Decrease), 1e-12)
	assert.Equal(t, 0.5, UpdateScore(0.5, Change("sideways")))
}

func TestNormalizeChange(t *testing.T) {
	tests := map[string]Change{
		"Increase":        Increase,
		"BIG_INCREASE":    BigIncrease,
		"no change":       NoChange,
		"big decrease":    BigDecrease,
		"Big-Increase":    BigIncrease,
		"slight decrease": Decrease,
		"neutral":         NoChange,
		"unchanged":       NoChange,
		"none":            NoChange,
		"skyrocketing":    NoChange,
		"":                NoChange,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeChange(in), "input %q", in)
	}
}

func TestChangePriority(t *testing.T) {
	assert.Greater(t, BigIncrease.Priority(), BigDecrease.Priority())
	assert.Greater(t, BigDecrease.Priority(), Increase.Priority())
	assert.Greater(t, Increase.Priority(), Decrease.Priority())
	assert.Equal(t, 1, NoChange.Priority())
	assert.Zero(t, Change("bogus").Priority())
	assert.False(t, Change("bogus").Valid())
	assert.True(t, Decrease.Valid())
}

func TestLadders(t *testing.T) {
	cases := []struct {
		score   float64
		society string
		blob    string
	}{
		{0.8, "Allied", "close friend"},
		{0.75, "Allied", "close friend"},
		{0.5, "Friendly", "friend"},
		{0.1, "Positive", "acquaintance"},
		{0.0, "Neutral", "neutral"},
		{-0.1, "Tense", "wary"},
		{-0.4, "Unfriendly", "dislikes"},
		{-0.9, "Hostile", "enemy"},
	}
	for _, c := range cases {
		assert.Equal(t, c.society, SocietyLadder.Describe(c.score), "score %v", c.score)
		assert.Equal(t, c.blob, BlobLadder.Describe(c.score), "score %v", c.score)
	}
}

func TestCreateBatchNeutralPairs(t *testing.T) {
	r := NewRegistry()
	created := r.CreateBatch(DefaultCharters(3))
	require.Len(t, created, 3)
	for i, s := range created {
		assert.Equal(t, i, s.ID)
		assert.Len(t, s.Relations, 2)
		for other, score := range s.Relations {
			assert.NotEqual(t, s.ID, other)
			assert.Zero(t, score)
		}
	}
	assert.Equal(t, "Society-2", created[2].Name())
}

func TestUpdateRelationSymmetric(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(DefaultCharters(2))

	before, after, err := r.UpdateRelation(1, 0, BigIncrease)
	require.NoError(t, err)
	assert.Zero(t, before)
	assert.Equal(t, 0.25, after)

	s0, _ := r.Get(0)
	s1, _ := r.Get(1)
	assert.Equal(t, 0.25, s0.Relation(1))
	assert.Equal(t, 0.25, s1.Relation(0))
	assert.Equal(t, "0-1", PairKey(1, 0))
}

func TestUpdateRelationRejects(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(DefaultCharters(2))

	_, _, err := r.UpdateRelation(0, 5, Increase)
	assert.ErrorIs(t, err, ErrUnknownSociety)
	_, _, err = r.UpdateRelation(1, 1, Increase)
	assert.Error(t, err)

	s0, _ := r.Get(0)
	assert.Zero(t, s0.Relation(1))
}

type member struct {
	id      int
	society *int
}

func (m *member) MemberID() int { return m.id }

func (m *member) CurrentSociety() (int, bool) {
	if m.society == nil {
		return 0, false
	}
	return *m.society, true
}

func (m *member) SetSociety(id *int) { m.society = id }

func TestJoinKeepsBothSidesInSync(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(DefaultCharters(2))
	a, b := &member{id: 3}, &member{id: 1}

	require.NoError(t, r.Join(a, 0))
	require.NoError(t, r.Join(b, 0))
	require.NoError(t, r.Join(b, 0))
	s0, _ := r.Get(0)
	assert.Equal(t, []int{1, 3}, s0.Members)

	require.NoError(t, r.Join(a, 1))
	s1, _ := r.Get(1)
	assert.Equal(t, []int{1}, s0.Members)
	assert.Equal(t, []int{3}, s1.Members)
	sid, ok := a.CurrentSociety()
	assert.True(t, ok)
	assert.Equal(t, 1, sid)

	assert.NoError(t, r.CheckMembership([]Member{a, b}))

	r.Leave(b)
	assert.Empty(t, s0.Members)
	_, ok = b.CurrentSociety()
	assert.False(t, ok)
	assert.NoError(t, r.CheckMembership([]Member{a, b}))
}

func TestJoinUnknownSociety(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(DefaultCharters(1))
	m := &member{id: 0}
	assert.ErrorIs(t, r.Join(m, 4), ErrUnknownSociety)
	_, ok := m.CurrentSociety()
	assert.False(t, ok)
}

func TestCheckMembershipDetectsDrift(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(DefaultCharters(1))
	m := &member{id: 2}
	require.NoError(t, r.Join(m, 0))

	s0, _ := r.Get(0)
	s0.RemoveMember(2)
	assert.Error(t, r.CheckMembership([]Member{m}))
}

func TestDescribeAndReport(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch([]Charter{
		{Ideology: "Sun Keepers", Values: []string{"Light", "Order"}},
		{Ideology: "Moon Walkers", Values: []string{"Dreams"}},
	})
	_, _, err := r.UpdateRelation(0, 1, BigDecrease)
	require.NoError(t, err)
	_, _, err = r.UpdateRelation(0, 1, BigDecrease)
	require.NoError(t, err)
	require.NoError(t, r.Join(&member{id: 4}, 0))

	desc := r.Describe(func(id int) string { return "Blob-" + string(rune('0'+id)) })
	assert.Contains(t, desc, "Society-0\nIdeology: Sun Keepers\nValues: Light, Order")
	assert.Contains(t, desc, "Members: Blob-4")
	assert.Contains(t, desc, "With Society-1: Unfriendly (-0.5)")
	assert.Contains(t, desc, "Members: None")

	report := r.RelationsReport()
	assert.Contains(t, report, "Society-0 (Sun Keepers) and Society-1 (Moon Walkers): Unfriendly (-0.50)")
	assert.NotContains(t, report, "Society-1 (Moon Walkers) and Society-0")
	assert.Equal(t, "No societies exist in the simulation.", NewRegistry().RelationsReport())
}
