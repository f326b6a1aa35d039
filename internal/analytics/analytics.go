// Package analytics reports how often questions are being shown so operators
// can spot over- and under-exposed items.
package analytics

import (
	"context"
	"fmt"
	"sort"
)

// Category buckets an exposure rate.
type Category string

const (
	VeryHigh Category = "very_high"
	High     Category = "high"
	Moderate Category = "moderate"
	Low      Category = "low"
	VeryLow  Category = "very_low"
)

const (
	OverExposed  = 0.3
	UnderExposed = 0.1
)

// Categorize maps a rate in [0,1] to its bucket.
func Categorize(rate float64) Category {
	switch {
	case rate > 0.5:
		return VeryHigh
	case rate > 0.3:
		return High
	case rate > 0.1:
		return Moderate
	case rate > 0.05:
		return Low
	default:
		return VeryLow
	}
}

// RateSource is the read side of the exposure ledger.
type RateSource interface {
	ExposureRates(ctx context.Context, questionIDs []string, periodDays int) (map[string]float64, error)
}

type Item struct {
	QuestionID string   `json:"question_id"`
	Rate       float64  `json:"rate"`
	Category   Category `json:"category"`
}

type Summary struct {
	Count        int     `json:"count"`
	Average      float64 `json:"average"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	OverExposed  int     `json:"over_exposed"`
	UnderExposed int     `json:"under_exposed"`
}

type Report struct {
	PeriodDays int     `json:"period_days"`
	Items      []Item  `json:"items"`
	Summary    Summary `json:"summary"`
}

// Analyze computes per-question rates over the last periodDays (all time when
// periodDays <= 0). Items keep the order of ids; duplicates are reported once.
func Analyze(ctx context.Context, src RateSource, ids []string, periodDays int) (Report, error) {
	uniq := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	rep := Report{PeriodDays: periodDays, Items: []Item{}}
	if len(uniq) == 0 {
		return rep, nil
	}
	rates, err := src.ExposureRates(ctx, uniq, periodDays)
	if err != nil {
		return Report{}, fmt.Errorf("exposure rates: %w", err)
	}
	for _, id := range uniq {
		r := rates[id]
		rep.Items = append(rep.Items, Item{QuestionID: id, Rate: r, Category: Categorize(r)})
	}
	rep.Summary = summarize(rep.Items)
	return rep, nil
}

func summarize(items []Item) Summary {
	s := Summary{Count: len(items)}
	if len(items) == 0 {
		return s
	}
	s.Min, s.Max = items[0].Rate, items[0].Rate
	var total float64
	for _, it := range items {
		total += it.Rate
		if it.Rate < s.Min {
			s.Min = it.Rate
		}
		if it.Rate > s.Max {
			s.Max = it.Rate
		}
		if it.Rate > OverExposed {
			s.OverExposed++
		}
		if it.Rate < UnderExposed {
			s.UnderExposed++
		}
	}
	s.Average = total / float64(len(items))
	return s
}

// MostExposed returns up to n items with the highest rates, ties by id.
func (r Report) MostExposed(n int) []Item {
	items := append([]Item(nil), r.Items...)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Rate != items[j].Rate {
			return items[i].Rate > items[j].Rate
		}
		return items[i].QuestionID < items[j].QuestionID
	})
	if n >= 0 && n < len(items) {
		items = items[:n]
	}
	return items
}
