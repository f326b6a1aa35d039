// Package permute shuffles the options of a choice question and keeps the
// mapping needed to grade answers given against the shuffled display.
package permute

import (
	"fmt"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/seed"
)

// Permutation describes one question's display order.
//
// Order[d] is the canonical index shown at display index d. ReverseMap holds
// the same values: it translates a learner's display-index answer back to the
// canonical option. Inverse[c] is the display index of canonical option c.
type Permutation struct {
	QuestionID string        `json:"question_id"`
	Options    []exam.Choice `json:"options"`
	Order      []int         `json:"order"`
	ReverseMap []int         `json:"reverse_map"`
	Inverse    []int         `json:"-"`
}

// OutOfRangeError is returned when a preserved index does not exist on the
// question.
type OutOfRangeError struct {
	QuestionID string
	Index      int
	Options    int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("question %s: preserved index %d out of range (%d options)", e.QuestionID, e.Index, e.Options)
}

// Permute shuffles the options of q with a stream derived from s, leaving the
// preserved indices where they are. Questions that are not choice types, or
// have fewer than two options, get the identity permutation.
func Permute(q exam.Question, preserve []int, s uint64) (Permutation, error) {
	n := len(q.Choices)
	fixed := make([]bool, n)
	if q.Shuffleable() {
		for _, p := range preserve {
			if p < 0 || p >= n {
				return Permutation{}, &OutOfRangeError{QuestionID: q.ID, Index: p, Options: n}
			}
			fixed[p] = true
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if q.Shuffleable() {
		var movable []int
		for i := 0; i < n; i++ {
			if !fixed[i] {
				movable = append(movable, i)
			}
		}
		r := seed.Stream(s, "answers")
		// shuffle the canonical indices that are allowed to move, then lay
		// them back into the movable slots
		vals := append([]int(nil), movable...)
		for i := len(vals) - 1; i > 0; i-- {
			j := r.IntN(i + 1)
			vals[i], vals[j] = vals[j], vals[i]
		}
		for k, slot := range movable {
			order[slot] = vals[k]
		}
	}
	return build(q, order), nil
}

func build(q exam.Question, order []int) Permutation {
	p := Permutation{
		QuestionID: q.ID,
		Options:    make([]exam.Choice, len(order)),
		Order:      order,
		ReverseMap: append([]int(nil), order...),
		Inverse:    make([]int, len(order)),
	}
	for d, c := range order {
		p.Options[d] = q.Choices[c]
		p.Inverse[c] = d
	}
	return p
}

// Identity is the permutation of an unshuffled question.
func Identity(q exam.Question) Permutation {
	order := make([]int, len(q.Choices))
	for i := range order {
		order[i] = i
	}
	return build(q, order)
}

// ToCanonical maps a display index to the canonical option index.
func (p Permutation) ToCanonical(display int) (int, bool) {
	if display < 0 || display >= len(p.ReverseMap) {
		return 0, false
	}
	return p.ReverseMap[display], true
}

// ToDisplay maps a canonical option index to where it is shown.
func (p Permutation) ToDisplay(canonical int) (int, bool) {
	if canonical < 0 || canonical >= len(p.Inverse) {
		return 0, false
	}
	return p.Inverse[canonical], true
}

// FromReverseMap rebuilds a Permutation from a stored reverse map, as a
// grader would receive it. It rejects maps that are not a bijection over the
// options of q.
func FromReverseMap(q exam.Question, reverse []int) (Permutation, error) {
	n := len(q.Choices)
	if len(reverse) != n {
		return Permutation{}, fmt.Errorf("question %s: reverse map has %d entries for %d options", q.ID, len(reverse), n)
	}
	seen := make([]bool, n)
	for _, c := range reverse {
		if c < 0 || c >= n || seen[c] {
			return Permutation{}, fmt.Errorf("question %s: reverse map %v is not a permutation", q.ID, reverse)
		}
		seen[c] = true
	}
	return build(q, append([]int(nil), reverse...)), nil
}
