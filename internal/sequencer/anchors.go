package sequencer

import (
	"fmt"
	"sort"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
)

type anchorKey struct {
	key string
	pos int // 1-based
}

func sortedAnchors(m map[string]int, keep func(string) bool) []anchorKey {
	var out []anchorKey
	for k, p := range m {
		if keep(k) {
			out = append(out, anchorKey{key: k, pos: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].pos != out[j].pos {
			return out[i].pos < out[j].pos
		}
		return out[i].key < out[j].key
	})
	return out
}

// placeAnchors fixes anchored questions to their positions. A key naming a
// question id in the pool wins over a category of the same name. Category
// keys take the first not-yet-placed question of that category in pool
// order. Anchors that cannot be honored come back as violations and their
// questions stay free.
func placeAnchors(qs []exam.Question, anchors map[string]int) (*arrangement, []Violation) {
	n := len(qs)
	a := &arrangement{
		slots:  make([]exam.Question, n),
		pinned: make([]bool, n),
	}
	if len(anchors) == 0 {
		a.free = append([]exam.Question(nil), qs...)
		a.reindex()
		return a, nil
	}

	byID := make(map[string]int, n)
	for i, q := range qs {
		byID[q.ID] = i
	}
	placed := make([]bool, n)
	var unmet []Violation

	place := func(k anchorKey, idx int) {
		q := qs[idx]
		switch {
		case k.pos > n:
			unmet = append(unmet, anchorViolation(k, q.ID, fmt.Sprintf("position %d is beyond the %d questions in the pool", k.pos, n)))
		case a.pinned[k.pos-1]:
			unmet = append(unmet, anchorViolation(k, q.ID, fmt.Sprintf("position %d already taken by %s", k.pos, a.slots[k.pos-1].ID)))
		default:
			a.slots[k.pos-1] = q
			a.pinned[k.pos-1] = true
			placed[idx] = true
		}
	}

	for _, k := range sortedAnchors(anchors, func(key string) bool { _, ok := byID[key]; return ok }) {
		place(k, byID[k.key])
	}
	for _, k := range sortedAnchors(anchors, func(key string) bool { _, ok := byID[key]; return !ok }) {
		idx := -1
		found := false
		for i, q := range qs {
			if q.Category != k.key {
				continue
			}
			found = true
			if !placed[i] {
				idx = i
				break
			}
		}
		switch {
		case !found:
			unmet = append(unmet, anchorViolation(k, "", fmt.Sprintf("%q matches no question id or category in the pool", k.key)))
		case idx < 0:
			unmet = append(unmet, anchorViolation(k, "", fmt.Sprintf("every question of category %q is already placed", k.key)))
		default:
			place(k, idx)
		}
	}

	for i, q := range qs {
		if !placed[i] {
			a.free = append(a.free, q)
		}
	}
	a.reindex()
	return a, unmet
}

func anchorViolation(k anchorKey, qid, detail string) Violation {
	v := Violation{Kind: ViolationAnchor, Rule: -1, Detail: fmt.Sprintf("anchor %q at %d: %s", k.key, k.pos, detail)}
	if qid != "" {
		v.Questions = []string{qid}
	}
	return v
}

// AnchoredIDs returns the ids that the anchors of cfg would pin in qs. The
// engine protects these from the repetition filter.
func AnchoredIDs(qs []exam.Question, anchors map[string]int) map[string]bool {
	out := map[string]bool{}
	if len(anchors) == 0 {
		return out
	}
	a, _ := placeAnchors(qs, anchors)
	for i, p := range a.pinned {
		if p {
			out[a.slots[i].ID] = true
		}
	}
	return out
}
