// Package engine wires the sequencing pipeline together: repetition
// filtering against the exposure ledger, seed resolution, ordering, answer
// permutation and exposure recording.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-sequencer/internal/analytics"
	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/ledger"
	"github.com/mind-engage/mindengage-sequencer/internal/logging"
	"github.com/mind-engage/mindengage-sequencer/internal/metrics"
	"github.com/mind-engage/mindengage-sequencer/internal/permute"
	"github.com/mind-engage/mindengage-sequencer/internal/repetition"
	"github.com/mind-engage/mindengage-sequencer/internal/seed"
	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

// ErrMissingIdentity is returned when a call lacks a learner or session id.
var ErrMissingIdentity = errors.New("engine: learner and session ids are required")

// Engine is safe for concurrent use; the only shared state lives in its
// ledger.
type Engine struct {
	ledger  ledger.Ledger
	filter  *repetition.Filter
	seeds   seed.Provider
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock fixes the clock used for time-window seeds.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		ledger: l,
		filter: repetition.NewFilter(l),
		log:    logging.Discard(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.seeds = seed.NewProvider(e.now)
	return e
}

// Result is everything a test-taking client needs for one session.
type Result struct {
	TestSetID   string   `json:"test_set_id,omitempty"`
	LearnerID   string   `json:"learner_id"`
	SessionID   string   `json:"session_id"`
	QuestionIDs []string `json:"question_ids"`
	// OptionOrders[q][d] is the canonical option index shown at display index d.
	OptionOrders map[string][]int `json:"option_orders,omitempty"`
	// ReverseMaps[q] translates a display-index answer to the canonical index.
	ReverseMaps map[string][]int `json:"reverse_maps,omitempty"`

	Strategy sequencer.Strategy `json:"strategy"`
	Template sequencer.Template `json:"template,omitempty"`
	Seed     seed.Resolved      `json:"seed"`

	Unmet      []sequencer.Violation  `json:"unmet_constraints,omitempty"`
	Excluded   []repetition.Exclusion `json:"excluded,omitempty"`
	Readmitted []repetition.Exclusion `json:"readmitted,omitempty"`

	Preview          bool   `json:"preview"`
	ExposureRecorded bool   `json:"exposure_recorded"`
	ExposureError    string `json:"exposure_error,omitempty"`

	// Questions is the ordered pool, for in-process callers.
	Questions []exam.Question `json:"-"`
}

// Sequence runs the whole pipeline for one session. In preview mode nothing
// is written to the ledger. A failure to record exposures is logged and
// reported on the result; the ordering is still returned.
func (e *Engine) Sequence(ctx context.Context, pool exam.Pool, cfg sequencer.Config, learnerID, sessionID string, preview bool) (Result, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if pool.Len() == 0 {
		return Result{}, sequencer.ErrEmptyPool
	}
	if strings.TrimSpace(learnerID) == "" || strings.TrimSpace(sessionID) == "" {
		return Result{}, ErrMissingIdentity
	}

	res := Result{
		TestSetID: pool.TestSetID,
		LearnerID: learnerID,
		SessionID: sessionID,
		Strategy:  cfg.Strategy,
		Template:  cfg.Template,
		Preview:   preview,
	}

	questions := pool.Questions
	if cfg.PreventRepetition {
		out, err := e.filter.Apply(ctx, questions, learnerID, repetition.Params{
			Lookback:       cfg.LookbackSessions,
			MinGap:         cfg.MinGapBetweenExposure,
			MinPoolSize:    cfg.MinPoolSize,
			Protected:      sequencer.AnchoredIDs(questions, cfg.AnchorPositions),
			CurrentSession: sessionID,
		})
		if err != nil {
			return Result{}, fmt.Errorf("engine: %w", err)
		}
		questions = out.Questions
		res.Excluded, res.Readmitted = out.Excluded, out.Readmitted
		e.metrics.Excluded(len(out.Excluded))
	}

	res.Seed = e.seeds.SeedFor(seed.Request{
		TestSetID: pool.TestSetID,
		LearnerID: learnerID,
		SessionID: sessionID,
		Salt:      cfg.Salt,
		TimeBased: cfg.UsesTimeSeed(),
		Window:    cfg.Window(),
	})

	ord, err := sequencer.Sequence(questions, cfg, res.Seed.Value)
	if err != nil {
		return Result{}, err
	}
	res.Questions = ord.Questions
	res.QuestionIDs = ord.IDs()
	res.Unmet = ord.Unmet

	if cfg.EnableAnswerRandomization {
		if err := checkPreserve(pool.Questions, cfg.PreserveAnswerPositions); err != nil {
			return Result{}, err
		}
		res.OptionOrders = map[string][]int{}
		res.ReverseMaps = map[string][]int{}
		for _, q := range ord.Questions {
			if !q.Type.IsChoice() || len(q.Choices) == 0 {
				continue
			}
			p, err := e.PermuteAnswers(q, learnerID, sessionID, cfg.PreserveAnswerPositions)
			if err != nil {
				return Result{}, err
			}
			res.OptionOrders[q.ID] = p.Order
			res.ReverseMaps[q.ID] = p.ReverseMap
		}
	}

	for _, v := range res.Unmet {
		e.log.Warn("unmet sequencing constraint",
			"test_set_id", pool.TestSetID,
			"session_id", sessionID,
			"kind", v.Kind,
			"rule", v.Rule,
			"questions", v.Questions,
			"detail", v.Detail)
		e.metrics.Unmet(string(v.Kind))
	}

	if !preview {
		res.ExposureRecorded = true
		for _, id := range res.QuestionIDs {
			if err := e.RecordExposure(ctx, id, learnerID, sessionID); err != nil {
				e.log.Error("record exposure failed",
					"question_id", id,
					"learner_id", learnerID,
					"session_id", sessionID,
					"error", err)
				res.ExposureRecorded = false
				if res.ExposureError == "" {
					res.ExposureError = err.Error()
				}
			}
		}
	}

	e.metrics.ObserveSequence(string(cfg.Strategy), preview, time.Since(start))
	e.log.Debug("sequenced",
		"test_set_id", pool.TestSetID,
		"session_id", sessionID,
		"strategy", cfg.Strategy,
		"questions", len(res.QuestionIDs),
		"seed_source", res.Seed.Source,
		"preview", preview)
	return res, nil
}

// PermuteAnswers shuffles the options of q for one learner session. The same
// inputs always give the same permutation. preserve is shared by the whole
// pool, so indices past q's last option are skipped for q.
func (e *Engine) PermuteAnswers(q exam.Question, learnerID, sessionID string, preserve []int) (permute.Permutation, error) {
	p, err := permute.Permute(q, preserveFor(q, preserve), seed.ForAnswers(q.ID, learnerID, sessionID))
	var oe *permute.OutOfRangeError
	if errors.As(err, &oe) {
		return permute.Permutation{}, sequencer.NewConfigurationError("preserve_answer_positions", oe.Error())
	}
	return p, err
}

// checkPreserve rejects preserved indices that no choice question of the
// pool has.
func checkPreserve(qs []exam.Question, preserve []int) error {
	if len(preserve) == 0 {
		return nil
	}
	widest := 0
	for _, q := range qs {
		if q.Type.IsChoice() {
			widest = max(widest, len(q.Choices))
		}
	}
	if widest == 0 {
		return nil
	}
	for _, p := range preserve {
		if p >= widest {
			return sequencer.NewConfigurationError("preserve_answer_positions",
				fmt.Sprintf("index %d out of range: the widest choice question has %d options", p, widest))
		}
	}
	return nil
}

func preserveFor(q exam.Question, preserve []int) []int {
	var out []int
	for _, p := range preserve {
		if p < len(q.Choices) {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) RecordExposure(ctx context.Context, questionID, learnerID, sessionID string) error {
	if err := e.ledger.RecordExposure(ctx, questionID, learnerID, sessionID); err != nil {
		e.metrics.ExposureFailed()
		return fmt.Errorf("engine: record exposure: %w", err)
	}
	e.metrics.ExposureRecorded()
	return nil
}

func (e *Engine) ExposureRates(ctx context.Context, questionIDs []string, periodDays int) (map[string]float64, error) {
	rates, err := e.ledger.ExposureRates(ctx, questionIDs, periodDays)
	if err != nil {
		return nil, fmt.Errorf("engine: exposure rates: %w", err)
	}
	return rates, nil
}

func (e *Engine) Analyze(ctx context.Context, questionIDs []string, periodDays int) (analytics.Report, error) {
	return analytics.Analyze(ctx, e.ledger, questionIDs, periodDays)
}
