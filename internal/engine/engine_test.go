package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/ledger"
	"github.com/mind-engage/mindengage-sequencer/internal/logging"
	"github.com/mind-engage/mindengage-sequencer/internal/metrics"
	"github.com/mind-engage/mindengage-sequencer/internal/seed"
	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

var fixedNow = time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testPool() exam.Pool {
	diffs := []exam.Difficulty{exam.DifficultyEasy, exam.DifficultyMedium, exam.DifficultyHard}
	p := exam.Pool{TestSetID: "ts-1"}
	for i := 1; i <= 10; i++ {
		q := exam.Question{
			ID:         fmt.Sprintf("Q%d", i),
			Type:       exam.TypeMultipleChoice,
			Category:   []string{"algebra", "geometry"}[i%2],
			Difficulty: diffs[i%3],
			Points:     1,
		}
		for c := 0; c < 4; c++ {
			q.Choices = append(q.Choices, exam.Choice{ID: fmt.Sprintf("%s-%c", q.ID, 'a'+c)})
		}
		p.Questions = append(p.Questions, q)
	}
	p.Questions = append(p.Questions, exam.Question{ID: "Q11", Type: exam.TypeText, Category: "algebra"})
	return p
}

type failingLedger struct {
	*ledger.MemoryStore
}

func (failingLedger) RecordExposure(context.Context, string, string, string) error {
	return errors.New("ledger unavailable")
}

func TestSequence_DeterministicReplaysAcrossSessions(t *testing.T) {
	e := New(ledger.NewMemoryStore(), WithClock(clock))
	cfg := sequencer.DefaultConfig()
	cfg.Strategy = sequencer.Deterministic

	a, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", false)
	require.NoError(t, err)
	b, err := e.Sequence(context.Background(), testPool(), cfg, "bob", "s9", false)
	require.NoError(t, err)

	assert.Equal(t, a.QuestionIDs, b.QuestionIDs)
	assert.Equal(t, seed.SourceTimeWindow, a.Seed.Source)
	assert.Equal(t, time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC), a.Seed.Bucket)
	assert.Equal(t, a.Seed.Value, b.Seed.Value)
}

func TestSequence_ReplayIsIdempotentApartFromLedger(t *testing.T) {
	l := ledger.NewMemoryStore(ledger.WithClock(clock))
	e := New(l, WithClock(clock))
	cfg := sequencer.DefaultConfig()
	cfg.Strategy = sequencer.Deterministic

	a, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", false)
	require.NoError(t, err)
	b, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", false)
	require.NoError(t, err)
	assert.Equal(t, a.QuestionIDs, b.QuestionIDs)
	assert.Equal(t, a.ReverseMaps, b.ReverseMaps)
	// the pair counts once in the session index, twice in the raw log
	assert.Len(t, l.Log(), 22)
	rate, err := l.ExposureRate(context.Background(), "Q1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
}

func TestSequence_ReplayWithRepetitionFilter(t *testing.T) {
	l := ledger.NewMemoryStore(ledger.WithClock(clock))
	e := New(l, WithClock(clock))
	ctx := context.Background()
	cfg := sequencer.DefaultConfig()
	cfg.PreventRepetition = true

	a, err := e.Sequence(ctx, testPool(), cfg, "alice", "s1", false)
	require.NoError(t, err)
	require.Len(t, a.QuestionIDs, 11)
	require.True(t, a.ExposureRecorded)

	b, err := e.Sequence(ctx, testPool(), cfg, "alice", "s1", false)
	require.NoError(t, err)
	assert.Equal(t, a.QuestionIDs, b.QuestionIDs)
	assert.Equal(t, a.ReverseMaps, b.ReverseMaps)
	assert.Empty(t, b.Excluded)
	assert.Empty(t, b.Readmitted)

	// a new session still avoids what s1 showed
	c, err := e.Sequence(ctx, testPool(), cfg, "alice", "s2", true)
	require.NoError(t, err)
	assert.Len(t, c.QuestionIDs, 1)
	assert.Len(t, c.Excluded, 10)
}

func TestSequence_PreserveSkipsNarrowQuestions(t *testing.T) {
	p := testPool()
	p.Questions = append(p.Questions, exam.Question{
		ID:      "TF1",
		Type:    exam.TypeTrueFalse,
		Choices: []exam.Choice{{ID: "t"}, {ID: "f"}},
	})
	e := New(ledger.NewMemoryStore())
	cfg := sequencer.DefaultConfig()
	cfg.PreserveAnswerPositions = []int{3}

	res, err := e.Sequence(context.Background(), p, cfg, "alice", "s1", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 1}, res.ReverseMaps["TF1"])
	assert.Equal(t, 3, res.ReverseMaps["Q1"][3])

	perm, err := e.PermuteAnswers(p.Questions[len(p.Questions)-1], "alice", "s1", cfg.PreserveAnswerPositions)
	require.NoError(t, err)
	assert.Equal(t, res.ReverseMaps["TF1"], perm.ReverseMap)
}

func TestSequence_SessionSeedsDiffer(t *testing.T) {
	e := New(ledger.NewMemoryStore(), WithClock(clock))
	cfg := sequencer.DefaultConfig()
	a, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", true)
	require.NoError(t, err)
	b, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s2", true)
	require.NoError(t, err)
	assert.Equal(t, seed.SourceSession, a.Seed.Source)
	assert.NotEqual(t, a.QuestionIDs, b.QuestionIDs)
}

func TestSequence_PreviewDoesNotRecord(t *testing.T) {
	l := ledger.NewMemoryStore()
	e := New(l)
	res, err := e.Sequence(context.Background(), testPool(), sequencer.DefaultConfig(), "instructor", "preview-1", true)
	require.NoError(t, err)
	assert.True(t, res.Preview)
	assert.False(t, res.ExposureRecorded)
	assert.Empty(t, l.Log())
	_, err = l.History(context.Background(), "instructor", 0)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSequence_RecordsExposures(t *testing.T) {
	l := ledger.NewMemoryStore()
	reg := prometheus.NewRegistry()
	e := New(l, WithMetrics(metrics.New(reg)))
	res, err := e.Sequence(context.Background(), testPool(), sequencer.DefaultConfig(), "alice", "s1", false)
	require.NoError(t, err)
	assert.True(t, res.ExposureRecorded)

	hist, err := l.History(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.ElementsMatch(t, testPool().IDs(), hist[0].QuestionIDs)
}

func TestSequence_LedgerFailureStillReturnsOrdering(t *testing.T) {
	var logs bytes.Buffer
	e := New(failingLedger{ledger.NewMemoryStore()}, WithLogger(logging.New(logging.Config{Output: &logs})))
	res, err := e.Sequence(context.Background(), testPool(), sequencer.DefaultConfig(), "alice", "s1", false)
	require.NoError(t, err)
	assert.Len(t, res.QuestionIDs, 11)
	assert.False(t, res.ExposureRecorded)
	assert.Contains(t, res.ExposureError, "ledger unavailable")
	assert.Contains(t, logs.String(), "record exposure failed")
}

func TestSequence_Errors(t *testing.T) {
	e := New(ledger.NewMemoryStore())
	ctx := context.Background()

	_, err := e.Sequence(ctx, exam.Pool{TestSetID: "empty"}, sequencer.DefaultConfig(), "a", "s", false)
	assert.ErrorIs(t, err, sequencer.ErrEmptyPool)

	bad := sequencer.DefaultConfig()
	bad.RandomnessFactor = 3
	_, err = e.Sequence(ctx, testPool(), bad, "a", "s", false)
	assert.True(t, sequencer.IsConfigurationError(err))

	_, err = e.Sequence(ctx, testPool(), sequencer.DefaultConfig(), "", "s", false)
	assert.ErrorIs(t, err, ErrMissingIdentity)

	preserve := sequencer.DefaultConfig()
	preserve.PreserveAnswerPositions = []int{7}
	_, err = e.Sequence(ctx, testPool(), preserve, "a", "s", false)
	var ce *sequencer.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "preserve_answer_positions", ce.Field)
}

func TestSequence_AnswerMapsArePermutations(t *testing.T) {
	e := New(ledger.NewMemoryStore())
	cfg := sequencer.DefaultConfig()
	cfg.PreserveAnswerPositions = []int{3}
	res, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", true)
	require.NoError(t, err)

	assert.Len(t, res.ReverseMaps, 10)
	assert.NotContains(t, res.ReverseMaps, "Q11")
	for id, rm := range res.ReverseMaps {
		assert.ElementsMatch(t, []int{0, 1, 2, 3}, rm, id)
		assert.Equal(t, 3, rm[3], id)
		assert.Equal(t, res.OptionOrders[id], rm)
	}

	cfg.EnableAnswerRandomization = false
	res, err = e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", true)
	require.NoError(t, err)
	assert.Empty(t, res.ReverseMaps)
}

func TestSequence_RepetitionFilterProtectsAnchors(t *testing.T) {
	l := ledger.NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"Q1", "Q2", "Q3"} {
		require.NoError(t, l.RecordExposure(ctx, id, "alice", "s0"))
	}
	e := New(l)
	cfg := sequencer.DefaultConfig()
	cfg.PreventRepetition = true
	cfg.AnchorPositions = map[string]int{"Q1": 1}

	res, err := e.Sequence(ctx, testPool(), cfg, "alice", "s1", true)
	require.NoError(t, err)
	assert.Equal(t, "Q1", res.QuestionIDs[0])
	assert.NotContains(t, res.QuestionIDs, "Q2")
	assert.NotContains(t, res.QuestionIDs, "Q3")
	assert.Len(t, res.Excluded, 2)
	assert.Empty(t, res.Unmet)
}

func TestSequence_UnmetConstraintsAreLoggedNotReturned(t *testing.T) {
	var logs bytes.Buffer
	e := New(ledger.NewMemoryStore(), WithLogger(logging.New(logging.Config{Output: &logs})))
	cfg := sequencer.DefaultConfig()
	cfg.BlockingRules = []sequencer.BlockingRule{
		{Kind: sequencer.RuleBefore, Questions: []string{"Q1", "Q2"}},
		{Kind: sequencer.RuleBefore, Questions: []string{"Q2", "Q1"}},
	}
	res, err := e.Sequence(context.Background(), testPool(), cfg, "alice", "s1", true)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Unmet)
	assert.Contains(t, logs.String(), "unmet sequencing constraint")
}

func TestAnalyze_UsesLedger(t *testing.T) {
	l := ledger.NewMemoryStore()
	e := New(l)
	ctx := context.Background()
	require.NoError(t, e.RecordExposure(ctx, "Q1", "alice", "s1"))
	require.NoError(t, e.RecordExposure(ctx, "Q2", "alice", "s2"))

	rates, err := e.ExposureRates(ctx, []string{"Q1", "Q2", "Q3"}, 30)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Q1": 0.5, "Q2": 0.5, "Q3": 0}, rates)

	rep, err := e.Analyze(ctx, []string{"Q1", "Q3"}, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.OverExposed)
	assert.Equal(t, 1, rep.Summary.UnderExposed)
}
