package grading

import (
	"context"
	"math"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
)

type choiceStrategy struct{ allowPartial bool }

// Grade gives full points when the selection equals the key. With partial
// credit on, a selection with no wrong picks earns the fraction of the key it
// covers.
func (s choiceStrategy) Grade(_ context.Context, q exam.Question, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	correct := toSet(q.AnswerKey)
	resp := toSet(a.ChoiceIDs)
	if len(correct) == 0 {
		res.NeedsManual = true
		res.Feedback = append(res.Feedback, "no answer key")
		return res, nil
	}
	if setEqual(correct, resp) {
		res.AutoPoints = q.Points
		return res, nil
	}
	if !s.allowPartial || len(correct) < 2 {
		return res, nil
	}
	hits := 0
	for k := range resp {
		if _, ok := correct[k]; !ok {
			return res, nil
		}
		hits++
	}
	res.AutoPoints = q.Points * float64(hits) / float64(len(correct))
	return res, nil
}

type textStrategy struct{ maxEdit int }

func (s textStrategy) Grade(_ context.Context, q exam.Question, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if len(q.AnswerKey) == 0 {
		res.NeedsManual = true
		res.Feedback = append(res.Feedback, "manual grading required")
		return res, nil
	}
	got := normalize(a.Text)
	if got == "" {
		return res, nil
	}
	if tol, ok := numericKey(q.AnswerKey); ok {
		if v, ok := parseFloatLoose(a.Text); ok && tol.accepts(v) {
			res.AutoPoints = q.Points
		}
		return res, nil
	}
	fuzzy := false
	for _, k := range q.AnswerKey {
		nk := normalize(k)
		if nk == got {
			res.AutoPoints = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, got) <= s.maxEdit {
			fuzzy = true
		}
	}
	if fuzzy {
		res.AutoPoints = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

// sequenceStrategy scores ordering and matching questions: the translated
// choice ids must equal the key position by position.
type sequenceStrategy struct{}

func (sequenceStrategy) Grade(_ context.Context, q exam.Question, a Answer) (Result, error) {
	res := Result{MaxPoints: q.Points}
	if len(a.ChoiceIDs) != len(q.AnswerKey) {
		return res, nil
	}
	for i := range q.AnswerKey {
		if a.ChoiceIDs[i] != q.AnswerKey[i] {
			return res, nil
		}
	}
	res.AutoPoints = q.Points
	return res, nil
}

type tolerance struct {
	target float64
	abs    float64 // -1 when unset
	rel    float64
}

func (t tolerance) accepts(v float64) bool {
	diff := math.Abs(v - t.target)
	if diff == 0 {
		return true
	}
	if t.abs >= 0 && diff <= t.abs {
		return true
	}
	return t.rel >= 0 && diff <= t.rel*math.Abs(t.target)
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
