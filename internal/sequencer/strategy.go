package sequencer

import (
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/seed"
)

// Orderer orders the free (non-anchored) questions of a call. It must not
// modify its input and must draw randomness only from streams split off s.
type Orderer interface {
	Order(questions []exam.Question, cfg Config, s uint64) []exam.Question
}

var orderers = map[Strategy]Orderer{
	SimpleRandom:  shuffleOrderer{},
	Deterministic: shuffleOrderer{}, // same algorithm; the engine forces a time-window seed
	Stratified:    stratifiedOrderer{},
	Adaptive:      adaptiveOrderer{},
	TemplateBased: templateOrderer{},
	Balanced:      balancedOrderer{},
}

// OrdererFor returns the registered orderer of a strategy.
func OrdererFor(s Strategy) (Orderer, bool) {
	o, ok := orderers[s]
	return o, ok
}

// --- simple_random / deterministic ---

type shuffleOrderer struct{}

func (shuffleOrderer) Order(qs []exam.Question, _ Config, s uint64) []exam.Question {
	return shuffled(qs, seed.Stream(s, "order"))
}

// shuffled is a Fisher-Yates shuffle over a copy.
func shuffled(qs []exam.Question, r *rand.Rand) []exam.Question {
	out := make([]exam.Question, len(qs))
	copy(out, qs)
	for i := len(out) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// --- stratified ---

type stratifiedOrderer struct{}

func (stratifiedOrderer) Order(qs []exam.Question, cfg Config, s uint64) []exam.Question {
	parts := partition(qs, cfg.strata())
	r := seed.Stream(s, "strata")
	for i := range parts {
		parts[i] = shuffled(parts[i], r)
	}
	r.Shuffle(len(parts), func(i, j int) { parts[i], parts[j] = parts[j], parts[i] })
	return blend(interleave(parts), cfg.RandomnessFactor, seed.Stream(s, "blend"))
}

func strataOf(q exam.Question, key StrataKey) string {
	diff := strings.ToLower(string(q.Difficulty))
	switch key {
	case StrataTopic:
		return q.Category
	case StrataBoth:
		return diff + "|" + q.Category
	default:
		return diff
	}
}

// partition groups questions by strata in a stable order: difficulty rank,
// then key name. Input order is kept inside a partition.
func partition(qs []exam.Question, key StrataKey) [][]exam.Question {
	byKey := map[string][]exam.Question{}
	rank := map[string]int{}
	var keys []string
	for _, q := range qs {
		k := strataOf(q, key)
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
			rank[k] = q.Difficulty.Rank()
		}
		byKey[k] = append(byKey[k], q)
	}
	sort.Slice(keys, func(i, j int) bool {
		if key != StrataTopic && rank[keys[i]] != rank[keys[j]] {
			return rank[keys[i]] < rank[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make([][]exam.Question, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// interleave spreads each partition evenly over the output: item i of a
// partition of size n is scheduled at fraction (i+0.5)/n, ties going to the
// earlier partition. Equal-size partitions therefore come out round-robin.
func interleave(parts [][]exam.Question) []exam.Question {
	type slot struct {
		at   float64
		part int
		q    exam.Question
	}
	var slots []slot
	for p, qs := range parts {
		n := float64(len(qs))
		for i, q := range qs {
			slots = append(slots, slot{at: (float64(i) + 0.5) / n, part: p, q: q})
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].at != slots[j].at {
			return slots[i].at < slots[j].at
		}
		return slots[i].part < slots[j].part
	})
	out := make([]exam.Question, len(slots))
	for i, s := range slots {
		out[i] = s.q
	}
	return out
}

// blend walks the strict schedule and, with probability factor at each slot,
// swaps in a uniformly chosen later item instead. factor 0 keeps the schedule,
// factor 1 is a plain Fisher-Yates shuffle.
func blend(schedule []exam.Question, factor float64, r *rand.Rand) []exam.Question {
	if factor <= 0 {
		return schedule
	}
	out := make([]exam.Question, len(schedule))
	copy(out, schedule)
	n := len(out)
	for i := 0; i < n-1; i++ {
		if r.Float64() < factor {
			j := i + r.IntN(n-i)
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// --- adaptive ---

type adaptiveOrderer struct{}

// Order moves questions of weak categories (recent score below the threshold)
// to the front, weakest first, on top of the stratified order.
func (adaptiveOrderer) Order(qs []exam.Question, cfg Config, s uint64) []exam.Question {
	base := stratifiedOrderer{}.Order(qs, cfg, s)
	threshold := cfg.threshold()
	weak := map[string]float64{}
	for cat, score := range cfg.Performance {
		if score < threshold {
			weak[cat] = score
		}
	}
	if len(weak) == 0 {
		return base
	}
	sort.SliceStable(base, func(i, j int) bool {
		si, wi := weak[base[i].Category]
		sj, wj := weak[base[j].Category]
		if wi != wj {
			return wi
		}
		if wi && si != sj {
			return si < sj
		}
		return false
	})
	return base
}

// --- balanced ---

type balancedOrderer struct{}

// Order shuffles, then repairs left to right: when a question shares both
// topic and difficulty with its predecessor it is swapped with the next
// question ahead that does not. With nothing suitable ahead (the tail of the
// list) it is swapped with an earlier question where neither side clashes.
func (balancedOrderer) Order(qs []exam.Question, _ Config, s uint64) []exam.Question {
	out := shuffled(qs, seed.Stream(s, "order"))
	for i := 1; i < len(out); i++ {
		if !clash(out[i-1], out[i]) {
			continue
		}
		swapped := false
		for j := i + 1; j < len(out); j++ {
			if !clash(out[i-1], out[j]) {
				out[i], out[j] = out[j], out[i]
				swapped = true
				break
			}
		}
		if swapped {
			continue
		}
		for j := 0; j < i-1; j++ {
			out[i], out[j] = out[j], out[i]
			if cleanAt(out, j) && cleanAt(out, i) {
				break
			}
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// cleanAt reports whether out[i] clashes with neither neighbour.
func cleanAt(out []exam.Question, i int) bool {
	if i > 0 && clash(out[i-1], out[i]) {
		return false
	}
	if i+1 < len(out) && clash(out[i], out[i+1]) {
		return false
	}
	return true
}

func clash(a, b exam.Question) bool {
	return a.Category == b.Category && strings.EqualFold(string(a.Difficulty), string(b.Difficulty))
}

// Clashes counts adjacent pairs sharing both topic and difficulty.
func Clashes(qs []exam.Question) int {
	n := 0
	for i := 1; i < len(qs); i++ {
		if clash(qs[i-1], qs[i]) {
			n++
		}
	}
	return n
}
