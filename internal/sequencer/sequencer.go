// Package sequencer orders the questions of one session.
//
// Sequence is a pure function of the pool, the config and a base seed: anchors
// are fixed first, the configured strategy orders the remaining questions,
// and blocking rules are repaired over the result. Constraints that cannot be
// met are returned as Violations next to a best-effort ordering.
package sequencer

import (
	"github.com/mind-engage/mindengage-sequencer/internal/exam"
)

// Ordering is the output of Sequence.
type Ordering struct {
	Questions []exam.Question
	Unmet     []Violation
}

func (o Ordering) IDs() []string {
	out := make([]string, len(o.Questions))
	for i, q := range o.Questions {
		out[i] = q.ID
	}
	return out
}

// Sequence orders questions according to cfg using randomness derived only
// from seedValue. The input slice is not modified.
func Sequence(questions []exam.Question, cfg Config, seedValue uint64) (Ordering, error) {
	if len(questions) == 0 {
		return Ordering{}, ErrEmptyPool
	}
	if err := cfg.Validate(); err != nil {
		return Ordering{}, err
	}
	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			return Ordering{}, configErr("questions", "question without id")
		}
		if seen[q.ID] {
			return Ordering{}, configErr("questions", "duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
	}
	orderer, ok := OrdererFor(cfg.Strategy)
	if !ok {
		return Ordering{}, configErr("strategy", "no orderer registered for %q", cfg.Strategy)
	}

	arr, unmet := placeAnchors(questions, cfg.AnchorPositions)
	arr.free = orderer.Order(arr.free, cfg, seedValue)
	unmet = append(unmet, enforce(arr, cfg.BlockingRules)...)

	return Ordering{Questions: arr.seq(), Unmet: unmet}, nil
}
