// Package repetition holds back questions a learner has seen recently.
//
// Avoidance is a soft preference: when exclusions would shrink the pool below
// the minimum the evaluation needs, the least recently seen questions are
// readmitted first. The filter only reads the ledger.
package repetition

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/ledger"
)

// HistoryReader is the slice of the ledger the filter needs.
type HistoryReader interface {
	History(ctx context.Context, learnerID string, lookback int) ([]ledger.Snapshot, error)
}

type Params struct {
	Lookback    int // sessions of history to inspect
	MinGap      int // a question seen fewer than MinGap sessions ago is excluded
	MinPoolSize int // never return fewer questions than this (bounded by the pool)
	// Protected ids are never excluded, e.g. anchored questions.
	Protected map[string]bool
	// CurrentSession is the session being sequenced. Its own exposures are
	// not history, so reloading a recorded session sees the same pool.
	CurrentSession string
}

// Exclusion explains one held back (or readmitted) question.
type Exclusion struct {
	QuestionID string `json:"question_id"`
	// SessionsAgo is 1 when the question was in the learner's latest session.
	SessionsAgo int `json:"sessions_ago"`
}

type Outcome struct {
	Questions  []exam.Question `json:"-"`
	Excluded   []Exclusion     `json:"excluded,omitempty"`
	Readmitted []Exclusion     `json:"readmitted,omitempty"`
}

// Filter applies the repetition policy against a ledger.
type Filter struct {
	history HistoryReader
}

func NewFilter(h HistoryReader) *Filter {
	return &Filter{history: h}
}

// Apply returns the questions of pool (in pool order) the learner may see.
func (f *Filter) Apply(ctx context.Context, pool []exam.Question, learnerID string, p Params) (Outcome, error) {
	out := Outcome{Questions: pool}
	if len(pool) == 0 || p.MinGap <= 0 || p.Lookback <= 0 {
		return out, nil
	}
	lookback := p.Lookback
	if p.CurrentSession != "" {
		lookback++
	}
	hist, err := f.history.History(ctx, learnerID, lookback)
	if errors.Is(err, ledger.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("repetition: load history: %w", err)
	}
	hist = earlier(hist, p.CurrentSession, p.Lookback)

	gaps := LastSeen(hist)
	var (
		kept     = make([]exam.Question, 0, len(pool))
		excluded = map[string]int{}
	)
	for _, q := range pool {
		ago, seen := gaps[q.ID]
		if seen && ago < p.MinGap && !p.Protected[q.ID] {
			excluded[q.ID] = ago
			out.Excluded = append(out.Excluded, Exclusion{QuestionID: q.ID, SessionsAgo: ago})
			continue
		}
		kept = append(kept, q)
	}
	if len(excluded) == 0 {
		return out, nil
	}

	need := p.MinPoolSize
	if need < 1 {
		need = 1
	}
	if need > len(pool) {
		need = len(pool)
	}
	if len(kept) < need {
		// least recently seen first: larger gap first, then id
		candidates := make([]Exclusion, len(out.Excluded))
		copy(candidates, out.Excluded)
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].SessionsAgo != candidates[j].SessionsAgo {
				return candidates[i].SessionsAgo > candidates[j].SessionsAgo
			}
			return candidates[i].QuestionID < candidates[j].QuestionID
		})
		readmit := map[string]bool{}
		for _, c := range candidates[:need-len(kept)] {
			readmit[c.QuestionID] = true
			out.Readmitted = append(out.Readmitted, c)
			delete(excluded, c.QuestionID)
		}
		kept = kept[:0]
		for _, q := range pool {
			if _, ex := excluded[q.ID]; !ex {
				kept = append(kept, q)
			}
		}
		remaining := out.Excluded[:0:0]
		for _, e := range out.Excluded {
			if !readmit[e.QuestionID] {
				remaining = append(remaining, e)
			}
		}
		out.Excluded = remaining
	}
	out.Questions = kept
	return out, nil
}

// earlier drops the current session and trims to lookback sessions.
func earlier(hist []ledger.Snapshot, current string, lookback int) []ledger.Snapshot {
	out := make([]ledger.Snapshot, 0, len(hist))
	for _, s := range hist {
		if current != "" && s.SessionID == current {
			continue
		}
		out = append(out, s)
	}
	if len(out) > lookback {
		out = out[:lookback]
	}
	return out
}

// LastSeen maps each question in hist to how many sessions ago it last
// appeared. hist must be most recent first.
func LastSeen(hist []ledger.Snapshot) map[string]int {
	gaps := map[string]int{}
	for i, s := range hist {
		for _, id := range s.QuestionIDs {
			if _, ok := gaps[id]; !ok {
				gaps[id] = i + 1
			}
		}
	}
	return gaps
}
