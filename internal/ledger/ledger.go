// Package ledger keeps the append-only record of which questions were shown
// to which learner in which session, and derives per-learner history and
// per-question exposure rates from it.
//
// A (question, learner, session) triple counts once no matter how many times
// it is recorded. Sessions are identified by (learner, session) so two
// learners reusing a session id never merge.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by History for a learner with no sessions. Callers
// treat it as "no repetition constraint applies".
var ErrNotFound = errors.New("ledger: no exposure history")

// ErrInvalidExposure rejects records with a missing identifier.
var ErrInvalidExposure = errors.New("ledger: question, learner and session ids are required")

type Exposure struct {
	QuestionID string    `json:"question_id"`
	LearnerID  string    `json:"learner_id"`
	SessionID  string    `json:"session_id"`
	At         time.Time `json:"at"`
}

// Snapshot is one past session of a learner.
type Snapshot struct {
	SessionID   string    `json:"session_id"`
	At          time.Time `json:"at"`           // first exposure in the session
	QuestionIDs []string  `json:"question_ids"` // sorted, distinct
}

// Contains reports whether the session showed questionID.
func (s Snapshot) Contains(questionID string) bool {
	i := sort.SearchStrings(s.QuestionIDs, questionID)
	return i < len(s.QuestionIDs) && s.QuestionIDs[i] == questionID
}

// Ledger is the pluggable storage behind exposure accounting.
type Ledger interface {
	RecordExposure(ctx context.Context, questionID, learnerID, sessionID string) error
	// History returns up to lookback distinct sessions, most recent first.
	// lookback <= 0 returns every session.
	History(ctx context.Context, learnerID string, lookback int) ([]Snapshot, error)
	// ExposureRate is the fraction of sessions in the last periodDays (all
	// time when periodDays <= 0) that included questionID.
	ExposureRate(ctx context.Context, questionID string, periodDays int) (float64, error)
	ExposureRates(ctx context.Context, questionIDs []string, periodDays int) (map[string]float64, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func validate(questionID, learnerID, sessionID string) error {
	if strings.TrimSpace(questionID) == "" || strings.TrimSpace(learnerID) == "" || strings.TrimSpace(sessionID) == "" {
		return ErrInvalidExposure
	}
	return nil
}

// cutoff returns the earliest timestamp inside the period, or the zero time
// for "all time".
func cutoff(now time.Time, periodDays int) time.Time {
	if periodDays <= 0 {
		return time.Time{}
	}
	return now.Add(-time.Duration(periodDays) * 24 * time.Hour)
}

func rate(hits, total int) float64 {
	if total == 0 || hits <= 0 {
		return 0
	}
	if hits >= total {
		return 1
	}
	return float64(hits) / float64(total)
}

func sessionKey(learnerID, sessionID string) string {
	return learnerID + "\x00" + sessionID
}
