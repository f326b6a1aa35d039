package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the ledger in process. Each learner has its own shard
// and lock, so writes for one learner never block history reads of another.
// The global session index used for rates sits behind a separate lock.
type MemoryStore struct {
	now func() time.Time

	learners sync.Map // learnerID -> *learnerLog

	mu       sync.RWMutex
	log      []Exposure
	sessions map[string]*sessionStat // learner\x00session -> stat
}

type learnerLog struct {
	mu       sync.RWMutex
	order    []*learnerSession // insertion order, oldest first
	sessions map[string]*learnerSession
}

type learnerSession struct {
	id        string
	at        time.Time
	questions map[string]struct{}
}

type sessionStat struct {
	last      time.Time
	questions map[string]time.Time // latest record per question
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		now:      o.now,
		sessions: map[string]*sessionStat{},
	}
}

func (m *MemoryStore) learner(id string) *learnerLog {
	if v, ok := m.learners.Load(id); ok {
		return v.(*learnerLog)
	}
	v, _ := m.learners.LoadOrStore(id, &learnerLog{sessions: map[string]*learnerSession{}})
	return v.(*learnerLog)
}

func (m *MemoryStore) RecordExposure(ctx context.Context, questionID, learnerID, sessionID string) error {
	if err := validate(questionID, learnerID, sessionID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	at := m.now().UTC()

	ll := m.learner(learnerID)
	ll.mu.Lock()
	s, ok := ll.sessions[sessionID]
	if !ok {
		s = &learnerSession{id: sessionID, at: at, questions: map[string]struct{}{}}
		ll.sessions[sessionID] = s
		ll.order = append(ll.order, s)
	}
	s.questions[questionID] = struct{}{}
	ll.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, Exposure{QuestionID: questionID, LearnerID: learnerID, SessionID: sessionID, At: at})
	key := sessionKey(learnerID, sessionID)
	st, ok := m.sessions[key]
	if !ok {
		st = &sessionStat{questions: map[string]time.Time{}}
		m.sessions[key] = st
	}
	if at.After(st.last) {
		st.last = at
	}
	if prev, ok := st.questions[questionID]; !ok || at.After(prev) {
		st.questions[questionID] = at
	}
	return nil
}

func (m *MemoryStore) History(ctx context.Context, learnerID string, lookback int) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := m.learners.Load(learnerID)
	if !ok {
		return nil, ErrNotFound
	}
	ll := v.(*learnerLog)
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	if len(ll.order) == 0 {
		return nil, ErrNotFound
	}
	n := len(ll.order)
	if lookback > 0 && lookback < n {
		n = lookback
	}
	out := make([]Snapshot, 0, n)
	for i := len(ll.order) - 1; i >= 0 && len(out) < n; i-- {
		s := ll.order[i]
		ids := make([]string, 0, len(s.questions))
		for q := range s.questions {
			ids = append(ids, q)
		}
		sort.Strings(ids)
		out = append(out, Snapshot{SessionID: s.id, At: s.at, QuestionIDs: ids})
	}
	return out, nil
}

func (m *MemoryStore) ExposureRate(ctx context.Context, questionID string, periodDays int) (float64, error) {
	rates, err := m.ExposureRates(ctx, []string{questionID}, periodDays)
	if err != nil {
		return 0, err
	}
	return rates[questionID], nil
}

func (m *MemoryStore) ExposureRates(ctx context.Context, questionIDs []string, periodDays int) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := cutoff(m.now(), periodDays)
	hits := make(map[string]int, len(questionIDs))
	for _, id := range questionIDs {
		hits[id] = 0
	}

	m.mu.RLock()
	total := 0
	for _, st := range m.sessions {
		if st.last.Before(from) {
			continue
		}
		total++
		for q, at := range st.questions {
			if _, want := hits[q]; want && !at.Before(from) {
				hits[q]++
			}
		}
	}
	m.mu.RUnlock()

	out := make(map[string]float64, len(hits))
	for id, h := range hits {
		out[id] = rate(h, total)
	}
	return out, nil
}

// Log returns a copy of the raw append log.
func (m *MemoryStore) Log() []Exposure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Exposure, len(m.log))
	copy(out, m.log)
	return out
}
