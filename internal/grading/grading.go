// Package grading scores answers given against a permuted display.
//
// Clients report choices by display index. The grader translates them
// through the session's reverse map to canonical choice ids before any
// strategy looks at them, so answer keys never depend on the shuffle.
package grading

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/permute"
)

// Response is what a learner submitted for one question.
type Response struct {
	QuestionID string `json:"question_id"`
	// Selected holds display indices: the picked options for choice types,
	// the arranged order for ordering, one option per prompt for matching.
	Selected []int  `json:"selected,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Answer is a Response translated to canonical choice ids.
type Answer struct {
	ChoiceIDs []string
	Text      string
}

type Result struct {
	QuestionID  string   `json:"question_id"`
	AutoPoints  float64  `json:"auto_points"`
	MaxPoints   float64  `json:"max_points"`
	NeedsManual bool     `json:"needs_manual,omitempty"`
	Feedback    []string `json:"feedback,omitempty"`
}

// Strategy grades one question type.
type Strategy interface {
	Grade(ctx context.Context, q exam.Question, a Answer) (Result, error)
}

type Grader struct {
	strategies map[exam.QuestionType]Strategy
}

type Option func(*config)

type config struct {
	MaxEditDistance int  // fuzzy text matching
	AllowPartial    bool // partial credit for multi-answer multiple choice
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialCredit(b bool) Option  { return func(c *config) { c.AllowPartial = b } }

func New(opts ...Option) *Grader {
	cfg := &config{MaxEditDistance: 1, AllowPartial: true}
	for _, o := range opts {
		o(cfg)
	}
	return &Grader{
		strategies: map[exam.QuestionType]Strategy{
			exam.TypeMultipleChoice: choiceStrategy{allowPartial: cfg.AllowPartial},
			exam.TypeTrueFalse:      choiceStrategy{},
			exam.TypeText:           textStrategy{maxEdit: cfg.MaxEditDistance},
			exam.TypeOrdering:       sequenceStrategy{},
			exam.TypeMatching:       sequenceStrategy{},
		},
	}
}

// Grade translates r with reverseMap (nil means the options were shown in
// canonical order) and scores it.
func (g *Grader) Grade(ctx context.Context, q exam.Question, reverseMap []int, r Response) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{QuestionID: q.ID, MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"no strategy available"}}, nil
	}
	a, err := Translate(q, reverseMap, r)
	if err != nil {
		return Result{QuestionID: q.ID, MaxPoints: q.Points}, err
	}
	res, err := s.Grade(ctx, q, a)
	res.QuestionID = q.ID
	return res, err
}

// Translate maps display indices to canonical choice ids.
func Translate(q exam.Question, reverseMap []int, r Response) (Answer, error) {
	a := Answer{Text: r.Text}
	if len(r.Selected) == 0 {
		return a, nil
	}
	p := permute.Identity(q)
	if reverseMap != nil {
		var err error
		if p, err = permute.FromReverseMap(q, reverseMap); err != nil {
			return a, err
		}
	}
	for _, d := range r.Selected {
		c, ok := p.ToCanonical(d)
		if !ok {
			return a, fmt.Errorf("question %s: display index %d out of range", q.ID, d)
		}
		a.ChoiceIDs = append(a.ChoiceIDs, q.Choices[c].ID)
	}
	return a, nil
}

// Sheet is the graded outcome of a whole session.
type Sheet struct {
	Results   []Result `json:"results"`
	Score     float64  `json:"score"`
	MaxScore  float64  `json:"max_score"`
	NeedsHand int      `json:"needs_manual"`
}

// GradeAll scores every response against its question and the reverse maps
// returned when the session was sequenced. Responses for unknown questions
// are an error.
func (g *Grader) GradeAll(ctx context.Context, questions map[string]exam.Question, reverseMaps map[string][]int, responses []Response) (Sheet, error) {
	var sh Sheet
	for _, r := range responses {
		q, ok := questions[r.QuestionID]
		if !ok {
			return Sheet{}, fmt.Errorf("unknown question %q", r.QuestionID)
		}
		res, err := g.Grade(ctx, q, reverseMaps[r.QuestionID], r)
		if err != nil {
			return Sheet{}, err
		}
		sh.Results = append(sh.Results, res)
		sh.Score += res.AutoPoints
		sh.MaxScore += res.MaxPoints
		if res.NeedsManual {
			sh.NeedsHand++
		}
	}
	return sh, nil
}
