package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// SQLStore persists exposures in a single append-only table. Duplicate
// records are kept as written; every read deduplicates with DISTINCT.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore expects the schema from internal/db to be in place.
func NewSQLStore(db *sql.DB, opts ...Option) *SQLStore {
	o := buildOptions(opts)
	return &SQLStore{db: db, now: o.now}
}

func (s *SQLStore) RecordExposure(ctx context.Context, questionID, learnerID, sessionID string) error {
	if err := validate(questionID, learnerID, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exposures (question_id, learner_id, session_id, recorded_at)
		 VALUES ($1,$2,$3,$4)`,
		questionID, learnerID, sessionID, s.now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("ledger: record exposure: %w", err)
	}
	return nil
}

func (s *SQLStore) History(ctx context.Context, learnerID string, lookback int) ([]Snapshot, error) {
	q := `SELECT session_id, MIN(seq) AS first_seq, MIN(recorded_at)
		FROM exposures WHERE learner_id=$1
		GROUP BY session_id ORDER BY first_seq DESC`
	args := []any{learnerID}
	if lookback > 0 {
		q += ` LIMIT $2`
		args = append(args, lookback)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	var (
		out     []Snapshot
		index   = map[string]int{}
		minSeq  int64
		hasRows bool
	)
	for rows.Next() {
		var (
			sid      string
			firstSeq int64
			at       int64
		)
		if err := rows.Scan(&sid, &firstSeq, &at); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ledger: history: %w", err)
		}
		index[sid] = len(out)
		out = append(out, Snapshot{SessionID: sid, At: time.Unix(at, 0).UTC()})
		if !hasRows || firstSeq < minSeq {
			minSeq = firstSeq
		}
		hasRows = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	rows.Close()
	if !hasRows {
		return nil, ErrNotFound
	}

	// every row of a selected session has seq >= its first_seq >= minSeq
	qrows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT session_id, question_id FROM exposures
		 WHERE learner_id=$1 AND seq >= $2`,
		learnerID, minSeq)
	if err != nil {
		return nil, fmt.Errorf("ledger: history questions: %w", err)
	}
	defer qrows.Close()
	for qrows.Next() {
		var sid, qid string
		if err := qrows.Scan(&sid, &qid); err != nil {
			return nil, fmt.Errorf("ledger: history questions: %w", err)
		}
		if i, ok := index[sid]; ok {
			out[i].QuestionIDs = append(out[i].QuestionIDs, qid)
		}
	}
	if err := qrows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: history questions: %w", err)
	}
	for i := range out {
		sort.Strings(out[i].QuestionIDs)
	}
	return out, nil
}

func (s *SQLStore) ExposureRate(ctx context.Context, questionID string, periodDays int) (float64, error) {
	rates, err := s.ExposureRates(ctx, []string{questionID}, periodDays)
	if err != nil {
		return 0, err
	}
	return rates[questionID], nil
}

func (s *SQLStore) ExposureRates(ctx context.Context, questionIDs []string, periodDays int) (map[string]float64, error) {
	from := cutoff(s.now(), periodDays)
	var fromUnix int64
	if !from.IsZero() {
		fromUnix = from.Unix()
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (
		   SELECT DISTINCT learner_id, session_id FROM exposures WHERE recorded_at >= $1
		 ) s`, fromUnix).Scan(&total); err != nil {
		return nil, fmt.Errorf("ledger: count sessions: %w", err)
	}

	hits := make(map[string]int, len(questionIDs))
	for _, id := range questionIDs {
		hits[id] = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, COUNT(*) FROM (
		   SELECT DISTINCT question_id, learner_id, session_id FROM exposures WHERE recorded_at >= $1
		 ) s GROUP BY question_id`, fromUnix)
	if err != nil {
		return nil, fmt.Errorf("ledger: count exposures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			qid string
			n   int
		)
		if err := rows.Scan(&qid, &n); err != nil {
			return nil, fmt.Errorf("ledger: count exposures: %w", err)
		}
		if _, want := hits[qid]; want {
			hits[qid] = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: count exposures: %w", err)
	}

	out := make(map[string]float64, len(hits))
	for id, h := range hits {
		out[id] = rate(h, total)
	}
	return out, nil
}
