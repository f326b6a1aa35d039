package sequencer

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
)

func q(id, cat string, diff exam.Difficulty) exam.Question {
	return exam.Question{ID: id, Type: exam.TypeMultipleChoice, Category: cat, Difficulty: diff, Points: 1}
}

func tenQuestions() []exam.Question {
	diffs := []exam.Difficulty{exam.DifficultyEasy, exam.DifficultyMedium, exam.DifficultyHard}
	cats := []string{"algebra", "geometry"}
	out := make([]exam.Question, 10)
	for i := range out {
		out[i] = q(fmt.Sprintf("Q%d", i+1), cats[i%2], diffs[i%3])
	}
	return out
}

func withStrategy(s Strategy) Config {
	c := DefaultConfig()
	c.Strategy = s
	return c
}

func indexOf(o Ordering) map[string]int {
	m := map[string]int{}
	for i, id := range o.IDs() {
		m[id] = i
	}
	return m
}

func TestSequence_EmptyPool(t *testing.T) {
	_, err := Sequence(nil, DefaultConfig(), 1)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestSequence_RejectsBadInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = "zigzag"
	_, err := Sequence(tenQuestions(), cfg, 1)
	assert.True(t, IsConfigurationError(err))

	dup := append(tenQuestions(), q("Q1", "algebra", exam.DifficultyEasy))
	_, err = Sequence(dup, DefaultConfig(), 1)
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "questions", ce.Field)
}

func TestSequence_EveryStrategyIsAReproduciblePermutation(t *testing.T) {
	configs := map[string]Config{}
	for _, s := range []Strategy{SimpleRandom, Stratified, Deterministic, Adaptive, Balanced} {
		configs[string(s)] = withStrategy(s)
	}
	for tmpl := range knownTemplates {
		c := withStrategy(TemplateBased)
		c.Template = tmpl
		configs["template/"+string(tmpl)] = c
	}
	pool := tenQuestions()
	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			a, err := Sequence(pool, cfg, 42)
			require.NoError(t, err)
			b, err := Sequence(pool, cfg, 42)
			require.NoError(t, err)
			assert.Equal(t, a.IDs(), b.IDs())
			assert.ElementsMatch(t, exam.Pool{Questions: pool}.IDs(), a.IDs())
			assert.Empty(t, a.Unmet)
		})
	}
}

func TestSequence_DoesNotModifyInput(t *testing.T) {
	pool := tenQuestions()
	before := exam.Pool{Questions: pool}.IDs()
	_, err := Sequence(pool, withStrategy(Balanced), 7)
	require.NoError(t, err)
	assert.Equal(t, before, exam.Pool{Questions: pool}.IDs())
}

func TestSequence_SeedChangesOrder(t *testing.T) {
	a, err := Sequence(tenQuestions(), DefaultConfig(), 1)
	require.NoError(t, err)
	b, err := Sequence(tenQuestions(), DefaultConfig(), 2)
	require.NoError(t, err)
	assert.NotEqual(t, a.IDs(), b.IDs())
}

func TestSequence_AnchorAndBeforeRule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorPositions = map[string]int{"Q1": 1}
	cfg.BlockingRules = []BlockingRule{{Kind: RuleBefore, Questions: []string{"Q5", "Q3"}}}

	for s := uint64(0); s < 200; s++ {
		out, err := Sequence(tenQuestions(), cfg, s)
		require.NoError(t, err)
		pos := indexOf(out)
		require.Equal(t, 0, pos["Q1"], "seed %d", s)
		require.Less(t, pos["Q5"], pos["Q3"], "seed %d", s)
		require.Empty(t, out.Unmet)
	}
}

func TestSequence_BeforeChainRespectsAnchors(t *testing.T) {
	cfg := withStrategy(Stratified)
	cfg.RandomnessFactor = 0.5
	cfg.AnchorPositions = map[string]int{"Q4": 2, "Q9": 6}
	cfg.BlockingRules = []BlockingRule{
		{Kind: RuleBefore, Questions: []string{"Q2", "Q4", "Q6", "Q8"}},
	}
	for s := uint64(0); s < 100; s++ {
		out, err := Sequence(tenQuestions(), cfg, s)
		require.NoError(t, err)
		pos := indexOf(out)
		require.Equal(t, 1, pos["Q4"])
		require.Equal(t, 5, pos["Q9"])
		require.Less(t, pos["Q2"], pos["Q4"])
		require.Less(t, pos["Q4"], pos["Q6"])
		require.Less(t, pos["Q6"], pos["Q8"])
		require.Empty(t, out.Unmet, "seed %d", s)
	}
}

func TestSequence_NotAdjacent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockingRules = []BlockingRule{{Kind: RuleNotAdjacent, Questions: []string{"Q1", "Q2", "Q3"}}}
	group := map[string]bool{"Q1": true, "Q2": true, "Q3": true}
	for s := uint64(0); s < 100; s++ {
		out, err := Sequence(tenQuestions(), cfg, s)
		require.NoError(t, err)
		ids := out.IDs()
		for i := 1; i < len(ids); i++ {
			require.False(t, group[ids[i-1]] && group[ids[i]], "seed %d: %v", s, ids)
		}
		require.Empty(t, out.Unmet)
	}
}

func TestSequence_ContradictionsAreReportedNotRaised(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockingRules = []BlockingRule{
		{Kind: RuleBefore, Questions: []string{"Q3", "Q4"}},
		{Kind: RuleBefore, Questions: []string{"Q4", "Q3"}},
	}
	out, err := Sequence(tenQuestions(), cfg, 3)
	require.NoError(t, err)
	assert.Len(t, out.IDs(), 10)
	require.NotEmpty(t, out.Unmet)
	assert.Equal(t, ViolationBefore, out.Unmet[0].Kind)
}

func TestSequence_RulesNeverMoveAnchors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorPositions = map[string]int{"Q2": 2, "Q7": 5}
	cfg.BlockingRules = []BlockingRule{{Kind: RuleBefore, Questions: []string{"Q7", "Q2"}}}
	out, err := Sequence(tenQuestions(), cfg, 11)
	require.NoError(t, err)
	pos := indexOf(out)
	assert.Equal(t, 1, pos["Q2"])
	assert.Equal(t, 4, pos["Q7"])
	require.Len(t, out.Unmet, 1)
	assert.Equal(t, 0, out.Unmet[0].Rule)
	assert.Equal(t, []string{"Q7", "Q2"}, out.Unmet[0].Questions)
}

func TestSequence_CategoryAnchor(t *testing.T) {
	cfg := DefaultConfig()
	// Q2 is the first geometry question in pool order
	cfg.AnchorPositions = map[string]int{"geometry": 3, "Q4": 1}
	for s := uint64(0); s < 20; s++ {
		out, err := Sequence(tenQuestions(), cfg, s)
		require.NoError(t, err)
		assert.Equal(t, "Q2", out.Questions[2].ID)
		assert.Equal(t, "Q4", out.Questions[0].ID)
	}
}

func TestSequence_AnchorProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AnchorPositions = map[string]int{"Q1": 2, "Q2": 2, "Q3": 11, "calculus": 4}
	out, err := Sequence(tenQuestions(), cfg, 5)
	require.NoError(t, err)
	assert.Equal(t, "Q1", out.Questions[1].ID)
	require.Len(t, out.Unmet, 3)
	for _, v := range out.Unmet {
		assert.Equal(t, ViolationAnchor, v.Kind)
		assert.Equal(t, -1, v.Rule)
	}
	assert.Len(t, out.IDs(), 10)
}

func TestAnchoredIDs(t *testing.T) {
	got := AnchoredIDs(tenQuestions(), map[string]int{"Q5": 1, "geometry": 2, "Q9": 99})
	assert.Equal(t, map[string]bool{"Q5": true, "Q2": true}, got)
	assert.Empty(t, AnchoredIDs(tenQuestions(), nil))
}

func maxRun(qs []exam.Question, key func(exam.Question) string) int {
	best, run := 0, 0
	for i := range qs {
		if i > 0 && key(qs[i]) == key(qs[i-1]) {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

func TestStratified_RunBoundAtZeroRandomness(t *testing.T) {
	var pool []exam.Question
	for i, d := range []exam.Difficulty{exam.DifficultyEasy, exam.DifficultyMedium, exam.DifficultyHard} {
		for k := 0; k < 5; k++ {
			pool = append(pool, q(fmt.Sprintf("%d-%d", i, k), "c", d))
		}
	}
	cfg := withStrategy(Stratified)
	bound := int(math.Ceil(float64(len(pool))/3)) + 1
	diff := func(q exam.Question) string { return string(q.Difficulty) }
	for s := uint64(0); s < 50; s++ {
		out, err := Sequence(pool, cfg, s)
		require.NoError(t, err)
		assert.LessOrEqual(t, maxRun(out.Questions, diff), bound)
		assert.Equal(t, 1, maxRun(out.Questions, diff))
	}
}

func TestStratified_UnevenPartitionsSpreadOut(t *testing.T) {
	var pool []exam.Question
	for k := 0; k < 8; k++ {
		pool = append(pool, q(fmt.Sprintf("e%d", k), "c", exam.DifficultyEasy))
	}
	for k := 0; k < 2; k++ {
		pool = append(pool, q(fmt.Sprintf("h%d", k), "c", exam.DifficultyHard))
	}
	out, err := Sequence(pool, withStrategy(Stratified), 9)
	require.NoError(t, err)
	// hard items land at 1/4 and 3/4 of the run, never next to each other
	assert.LessOrEqual(t, maxRun(out.Questions, func(q exam.Question) string { return string(q.Difficulty) }), 4)
}

func TestStratified_TopicKey(t *testing.T) {
	cfg := withStrategy(Stratified)
	cfg.StrataKey = StrataTopic
	out, err := Sequence(tenQuestions(), cfg, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, maxRun(out.Questions, func(q exam.Question) string { return q.Category }))
}

func TestAdaptive_WeakCategoriesFirst(t *testing.T) {
	var pool []exam.Question
	for _, cat := range []string{"history", "geometry", "algebra"} {
		for k := 0; k < 3; k++ {
			pool = append(pool, q(fmt.Sprintf("%s%d", cat, k), cat, exam.DifficultyMedium))
		}
	}
	cfg := withStrategy(Adaptive)
	cfg.Performance = map[string]float64{"algebra": 0.3, "geometry": 0.5, "history": 0.9}

	out, err := Sequence(pool, cfg, 8)
	require.NoError(t, err)
	var cats []string
	for _, q := range out.Questions {
		cats = append(cats, q.Category)
	}
	assert.Equal(t, []string{
		"algebra", "algebra", "algebra",
		"geometry", "geometry", "geometry",
		"history", "history", "history",
	}, cats)
}

func TestAdaptive_NoWeakCategoriesFallsBackToStratified(t *testing.T) {
	cfg := withStrategy(Adaptive)
	cfg.Performance = map[string]float64{"algebra": 0.95}
	a, err := Sequence(tenQuestions(), cfg, 21)
	require.NoError(t, err)

	strat := withStrategy(Stratified)
	b, err := Sequence(tenQuestions(), strat, 21)
	require.NoError(t, err)
	assert.Equal(t, b.IDs(), a.IDs())
}

func TestTemplates(t *testing.T) {
	pool := []exam.Question{
		q("e1", "a", exam.DifficultyEasy), q("e2", "b", exam.DifficultyEasy), q("e3", "c", exam.DifficultyEasy),
		q("h1", "a", exam.DifficultyHard), q("h2", "b", exam.DifficultyHard), q("h3", "c", exam.DifficultyHard),
	}
	run := func(tmpl Template) []exam.Question {
		cfg := withStrategy(TemplateBased)
		cfg.Template = tmpl
		out, err := Sequence(pool, cfg, 13)
		require.NoError(t, err)
		return out.Questions
	}
	ranks := func(qs []exam.Question) []int {
		var r []int
		for _, q := range qs {
			r = append(r, q.Difficulty.Rank())
		}
		return r
	}

	assert.Equal(t, []int{1, 1, 1, 3, 3, 3}, ranks(run(EasyToHard)))
	assert.Equal(t, []int{3, 3, 3, 1, 1, 1}, ranks(run(HardToEasy)))
	assert.Equal(t, []int{1, 3, 1, 3, 1, 3}, ranks(run(AlternatingDifficulty)))
	assert.Equal(t, []int{1, 3, 1, 3, 1, 3}, ranks(run(MixedDifficulty)))
	assert.Equal(t, 2, maxRun(run(TopicGrouped), func(q exam.Question) string { return q.Category }))
}

func TestTemplate_MixedDifficultyCyclesBuckets(t *testing.T) {
	pool := []exam.Question{
		q("h1", "x", exam.DifficultyHard), q("m1", "x", exam.DifficultyMedium), q("e1", "x", exam.DifficultyEasy),
		q("e2", "x", exam.DifficultyEasy), q("e3", "x", exam.DifficultyEasy),
	}
	cfg := withStrategy(TemplateBased)
	cfg.Template = MixedDifficulty
	out, err := Sequence(pool, cfg, 1)
	require.NoError(t, err)
	var r []int
	for _, q := range out.Questions {
		r = append(r, q.Difficulty.Rank())
	}
	assert.Equal(t, []int{1, 2, 3, 1, 1}, r)
}

func TestTemplate_CognitiveProgression(t *testing.T) {
	var pool []exam.Question
	for i, lvl := range []int{4, 1, 6, 2, 2, 3, 1, 5} {
		qq := q(fmt.Sprintf("c%d", i), "x", exam.DifficultyMedium)
		qq.CognitiveLevel = lvl
		pool = append(pool, qq)
	}
	cfg := withStrategy(TemplateBased)
	cfg.Template = CognitiveProgression
	for s := uint64(0); s < 10; s++ {
		out, err := Sequence(pool, cfg, s)
		require.NoError(t, err)
		for i := 1; i < len(out.Questions); i++ {
			assert.LessOrEqual(t, out.Questions[i-1].CognitiveLevel, out.Questions[i].CognitiveLevel)
		}
	}
}

func TestBalanced_NoAdjacentTwins(t *testing.T) {
	var pool []exam.Question
	n := 0
	for _, cat := range []string{"a", "b", "c", "d"} {
		for _, d := range []exam.Difficulty{exam.DifficultyEasy, exam.DifficultyMedium, exam.DifficultyHard} {
			for k := 0; k < 2; k++ {
				n++
				pool = append(pool, q(fmt.Sprintf("b%02d", n), cat, d))
			}
		}
	}
	for s := uint64(0); s < 100; s++ {
		out, err := Sequence(pool, withStrategy(Balanced), s)
		require.NoError(t, err)
		require.Zero(t, Clashes(out.Questions), "seed %d", s)
	}
}
