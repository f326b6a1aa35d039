package sequencer

import (
	"fmt"
	"slices"
	"sort"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
)

// arrangement is an ordering split into pinned slots, which never move, and
// free questions that fill the remaining positions in order.
type arrangement struct {
	slots  []exam.Question
	pinned []bool
	fp     []int // free positions, ascending
	free   []exam.Question
}

func (a *arrangement) reindex() {
	a.fp = a.fp[:0]
	for i, p := range a.pinned {
		if !p {
			a.fp = append(a.fp, i)
		}
	}
}

func (a *arrangement) seq() []exam.Question {
	out := make([]exam.Question, len(a.slots))
	copy(out, a.slots)
	for i, p := range a.fp {
		out[p] = a.free[i]
	}
	return out
}

func (a *arrangement) freeIndex(id string) int {
	for i, q := range a.free {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// freeBefore counts the free positions strictly before pos.
func (a *arrangement) freeBefore(pos int) int {
	return sort.SearchInts(a.fp, pos)
}

func (a *arrangement) move(from, to int) {
	q := a.free[from]
	a.free = slices.Delete(a.free, from, from+1)
	a.free = slices.Insert(a.free, to, q)
}

func positions(seq []exam.Question) map[string]int {
	m := make(map[string]int, len(seq))
	for i, q := range seq {
		m[q.ID] = i
	}
	return m
}

// violations lists every broken blocking rule. Rule members absent from the
// ordering are ignored.
func violations(seq []exam.Question, rules []BlockingRule) []Violation {
	pos := positions(seq)
	var out []Violation
	for i, r := range rules {
		switch r.Kind {
		case RuleBefore:
			var chain []string
			for _, id := range r.Questions {
				if _, ok := pos[id]; ok {
					chain = append(chain, id)
				}
			}
			for k := 0; k+1 < len(chain); k++ {
				x, y := chain[k], chain[k+1]
				if pos[x] > pos[y] {
					out = append(out, Violation{
						Kind: ViolationBefore, Rule: i, Questions: []string{x, y},
						Detail: fmt.Sprintf("%s must come before %s (at %d and %d)", x, y, pos[x]+1, pos[y]+1),
					})
				}
			}
		case RuleNotAdjacent:
			group := make(map[string]bool, len(r.Questions))
			for _, id := range r.Questions {
				group[id] = true
			}
			for p := 0; p+1 < len(seq); p++ {
				if group[seq[p].ID] && group[seq[p+1].ID] {
					out = append(out, Violation{
						Kind: ViolationNotAdjacent, Rule: i, Questions: []string{seq[p].ID, seq[p+1].ID},
						Detail: fmt.Sprintf("%s and %s are adjacent at %d", seq[p].ID, seq[p+1].ID, p+1),
					})
				}
			}
		}
	}
	return out
}

// enforce repairs blocking-rule violations in declaration order by moving
// free questions, for a bounded number of steps, and returns what is left.
func enforce(a *arrangement, rules []BlockingRule) []Violation {
	if len(rules) == 0 {
		return nil
	}
	members := 0
	for _, r := range rules {
		members += len(r.Questions)
	}
	limit := len(a.slots) + 4*members + 8
	for step := 0; step < limit; step++ {
		vs := violations(a.seq(), rules)
		if len(vs) == 0 {
			return nil
		}
		repaired := false
		for _, v := range vs {
			if a.repair(v, rules, len(vs)) {
				repaired = true
				break
			}
		}
		if !repaired {
			return vs
		}
	}
	return violations(a.seq(), rules)
}

func (a *arrangement) repair(v Violation, rules []BlockingRule, current int) bool {
	switch v.Kind {
	case ViolationBefore:
		return a.fixBefore(v.Questions[0], v.Questions[1])
	case ViolationNotAdjacent:
		return a.fixAdjacent(v.Questions[0], v.Questions[1], rules, current)
	}
	return false
}

// fixBefore makes x precede y. It prefers moving y to just after x, and falls
// back to moving x to just before y when y is pinned or nothing free follows x.
func (a *arrangement) fixBefore(x, y string) bool {
	ix, iy := a.freeIndex(x), a.freeIndex(y)
	pos := positions(a.seq())
	if iy >= 0 {
		if ix >= 0 {
			// iy < ix, so x shifts left by one once y is taken out
			a.move(iy, ix)
			return true
		}
		if c := a.freeBefore(pos[x]); c < len(a.fp) {
			a.move(iy, c)
			return true
		}
	}
	if ix >= 0 {
		if c := a.freeBefore(pos[y]); c >= 1 {
			a.move(ix, c-1)
			return true
		}
	}
	return false
}

// fixAdjacent swaps one of the pair (the later one first) with another free
// question, accepting the first swap that strictly lowers the total number of
// violations. Forward candidates are tried before backward ones.
func (a *arrangement) fixAdjacent(x, y string, rules []BlockingRule, current int) bool {
	for _, id := range []string{y, x} {
		i := a.freeIndex(id)
		if i < 0 {
			continue
		}
		candidates := make([]int, 0, len(a.free))
		for j := i + 1; j < len(a.free); j++ {
			candidates = append(candidates, j)
		}
		for j := i - 1; j >= 0; j-- {
			candidates = append(candidates, j)
		}
		for _, j := range candidates {
			a.free[i], a.free[j] = a.free[j], a.free[i]
			if len(violations(a.seq(), rules)) < current {
				return true
			}
			a.free[i], a.free[j] = a.free[j], a.free[i]
		}
	}
	return false
}
