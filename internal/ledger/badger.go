package ledger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	log/<seq:8 bytes BE>           raw Exposure, append only
//	sess/<learner>\x00<session>    sessionDoc index, rewritten on each record
var (
	prefixLog     = []byte("log/")
	prefixSession = []byte("sess/")
	keySequence   = []byte("seq/exposures")
)

const maxConflictRetries = 5

// BadgerConfig mirrors the knobs we actually use.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's internal logs; nil disables them.
	Logger *slog.Logger
}

// BadgerStore is a log-structured ledger: every record is appended under a
// monotonically increasing key and a per-session index document is updated in
// the same transaction.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

type sessionDoc struct {
	LearnerID string           `json:"learner_id"`
	SessionID string           `json:"session_id"`
	FirstSeq  uint64           `json:"first_seq"`
	FirstAt   int64            `json:"first_at"`
	LastAt    int64            `json:"last_at"`
	Questions map[string]int64 `json:"questions"` // latest record per question, unix nanos
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (or creates) a Badger-backed ledger.
func OpenBadger(cfg BadgerConfig, opts ...Option) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("ledger: badger path is required for a persistent store")
	}

	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("ledger: create badger directory %s: %w", cfg.Path, err)
		}
		bopts = badger.DefaultOptions(cfg.Path)
	}
	bopts = bopts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("ledger: open badger: %w", err)
	}
	seq, err := db.GetSequence(keySequence, 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: badger sequence: %w", err)
	}
	o := buildOptions(opts)
	return &BadgerStore{db: db, seq: seq, now: o.now}, nil
}

// Close releases the sequence lease and closes the database.
func (b *BadgerStore) Close() error {
	serr := b.seq.Release()
	derr := b.db.Close()
	if serr != nil {
		return serr
	}
	return derr
}

func sessionDocKey(learnerID, sessionID string) []byte {
	k := make([]byte, 0, len(prefixSession)+len(learnerID)+1+len(sessionID))
	k = append(k, prefixSession...)
	k = append(k, learnerID...)
	k = append(k, 0)
	k = append(k, sessionID...)
	return k
}

func learnerPrefix(learnerID string) []byte {
	k := make([]byte, 0, len(prefixSession)+len(learnerID)+1)
	k = append(k, prefixSession...)
	k = append(k, learnerID...)
	return append(k, 0)
}

func logKey(n uint64) []byte {
	k := make([]byte, len(prefixLog)+8)
	copy(k, prefixLog)
	binary.BigEndian.PutUint64(k[len(prefixLog):], n)
	return k
}

func (b *BadgerStore) RecordExposure(ctx context.Context, questionID, learnerID, sessionID string) error {
	if err := validate(questionID, learnerID, sessionID); err != nil {
		return err
	}
	n, err := b.seq.Next()
	if err != nil {
		return fmt.Errorf("ledger: next sequence: %w", err)
	}
	at := b.now().UTC()
	raw, err := json.Marshal(Exposure{QuestionID: questionID, LearnerID: learnerID, SessionID: sessionID, At: at})
	if err != nil {
		return err
	}
	docKey := sessionDocKey(learnerID, sessionID)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = b.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(logKey(n), raw); err != nil {
				return err
			}
			doc := sessionDoc{
				LearnerID: learnerID,
				SessionID: sessionID,
				FirstSeq:  n,
				FirstAt:   at.UnixNano(),
				Questions: map[string]int64{},
			}
			item, err := txn.Get(docKey)
			switch {
			case err == nil:
				if verr := item.Value(func(v []byte) error { return json.Unmarshal(v, &doc) }); verr != nil {
					return verr
				}
			case errors.Is(err, badger.ErrKeyNotFound):
			default:
				return err
			}
			if doc.Questions == nil {
				doc.Questions = map[string]int64{}
			}
			ts := at.UnixNano()
			if ts > doc.LastAt {
				doc.LastAt = ts
			}
			if prev, ok := doc.Questions[questionID]; !ok || ts > prev {
				doc.Questions[questionID] = ts
			}
			buf, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			return txn.Set(docKey, buf)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		break
	}
	if err != nil {
		return fmt.Errorf("ledger: record exposure: %w", err)
	}
	return nil
}

func (b *BadgerStore) History(ctx context.Context, learnerID string, lookback int) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var docs []sessionDoc
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		docs, err = scanSessions(txn, learnerPrefix(learnerID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: history: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].FirstSeq > docs[j].FirstSeq })
	if lookback > 0 && lookback < len(docs) {
		docs = docs[:lookback]
	}
	out := make([]Snapshot, 0, len(docs))
	for _, d := range docs {
		ids := make([]string, 0, len(d.Questions))
		for q := range d.Questions {
			ids = append(ids, q)
		}
		sort.Strings(ids)
		out = append(out, Snapshot{SessionID: d.SessionID, At: time.Unix(0, d.FirstAt).UTC(), QuestionIDs: ids})
	}
	return out, nil
}

func (b *BadgerStore) ExposureRate(ctx context.Context, questionID string, periodDays int) (float64, error) {
	rates, err := b.ExposureRates(ctx, []string{questionID}, periodDays)
	if err != nil {
		return 0, err
	}
	return rates[questionID], nil
}

func (b *BadgerStore) ExposureRates(ctx context.Context, questionIDs []string, periodDays int) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := cutoff(b.now(), periodDays)
	var fromNanos int64
	if !from.IsZero() {
		fromNanos = from.UnixNano()
	}
	var docs []sessionDoc
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		docs, err = scanSessions(txn, prefixSession)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: exposure rates: %w", err)
	}

	hits := make(map[string]int, len(questionIDs))
	for _, id := range questionIDs {
		hits[id] = 0
	}
	total := 0
	for _, d := range docs {
		if d.LastAt < fromNanos {
			continue
		}
		total++
		for q, ts := range d.Questions {
			if _, want := hits[q]; want && ts >= fromNanos {
				hits[q]++
			}
		}
	}
	out := make(map[string]float64, len(hits))
	for id, h := range hits {
		out[id] = rate(h, total)
	}
	return out, nil
}

// Log replays the raw append log in record order.
func (b *BadgerStore) Log(ctx context.Context) ([]Exposure, error) {
	var out []Exposure
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefixLog); it.ValidForPrefix(prefixLog); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Exposure
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &e) }); err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func scanSessions(txn *badger.Txn, prefix []byte) ([]sessionDoc, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	var out []sessionDoc
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		if !bytes.HasPrefix(item.Key(), prefixSession) {
			continue
		}
		var d sessionDoc
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &d) }); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
