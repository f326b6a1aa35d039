package sequencer

import (
	"sort"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/seed"
)

type templateFunc func(shuffledQs []exam.Question) []exam.Question

var templates = map[Template]templateFunc{
	EasyToHard:            easyToHard,
	HardToEasy:            hardToEasy,
	MixedDifficulty:       mixedDifficulty,
	TopicGrouped:          topicGrouped,
	AlternatingDifficulty: alternatingDifficulty,
	CognitiveProgression:  cognitiveProgression,
}

type templateOrderer struct{}

// Order shuffles first so that ties inside a template (same difficulty, same
// topic) still vary with the seed, then applies the named template.
func (templateOrderer) Order(qs []exam.Question, cfg Config, s uint64) []exam.Question {
	base := shuffled(qs, seed.Stream(s, "order"))
	fn, ok := templates[cfg.Template]
	if !ok {
		return base
	}
	return fn(base)
}

// unknown difficulties sort after hard
func rank(q exam.Question) int {
	if r := q.Difficulty.Rank(); r > 0 {
		return r
	}
	return 4
}

func easyToHard(qs []exam.Question) []exam.Question {
	sort.SliceStable(qs, func(i, j int) bool { return rank(qs[i]) < rank(qs[j]) })
	return qs
}

func hardToEasy(qs []exam.Question) []exam.Question {
	sort.SliceStable(qs, func(i, j int) bool {
		ri, rj := rank(qs[i]), rank(qs[j])
		if ri == 4 || rj == 4 {
			return rj == 4 && ri != 4
		}
		return ri > rj
	})
	return qs
}

// mixedDifficulty deals easy, medium, hard, unknown round-robin until every
// bucket is drained.
func mixedDifficulty(qs []exam.Question) []exam.Question {
	buckets := make([][]exam.Question, 4)
	for _, q := range qs {
		b := rank(q) - 1
		buckets[b] = append(buckets[b], q)
	}
	out := make([]exam.Question, 0, len(qs))
	for len(out) < len(qs) {
		for b := range buckets {
			if len(buckets[b]) == 0 {
				continue
			}
			out = append(out, buckets[b][0])
			buckets[b] = buckets[b][1:]
		}
	}
	return out
}

// topicGrouped keeps each category contiguous, categories in order of first
// appearance.
func topicGrouped(qs []exam.Question) []exam.Question {
	first := map[string]int{}
	for i, q := range qs {
		if _, ok := first[q.Category]; !ok {
			first[q.Category] = i
		}
	}
	sort.SliceStable(qs, func(i, j int) bool { return first[qs[i].Category] < first[qs[j].Category] })
	return qs
}

// alternatingDifficulty sorts by difficulty, splits into an easier and a
// harder half and alternates between them: easy, hard, easy, hard.
func alternatingDifficulty(qs []exam.Question) []exam.Question {
	sorted := easyToHard(qs)
	half := (len(sorted) + 1) / 2
	lower := append([]exam.Question(nil), sorted[:half]...)
	upper := append([]exam.Question(nil), sorted[half:]...)
	out := make([]exam.Question, 0, len(sorted))
	for i := 0; i < half; i++ {
		out = append(out, lower[i])
		if i < len(upper) {
			out = append(out, upper[i])
		}
	}
	return out
}

// cognitiveProgression orders by Bloom level, lowest first. Questions with no
// level keep their shuffled place relative to each other at the end.
func cognitiveProgression(qs []exam.Question) []exam.Question {
	level := func(q exam.Question) int {
		if q.CognitiveLevel <= 0 {
			return 1 << 30
		}
		return q.CognitiveLevel
	}
	sort.SliceStable(qs, func(i, j int) bool { return level(qs[i]) < level(qs[j]) })
	return qs
}
