package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	auth "github.com/mind-engage/mindengage-sequencer/internal/auth/middleware"
	"github.com/mind-engage/mindengage-sequencer/internal/engine"
	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/rbac"
	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

type sequenceRequest struct {
	Pool      exam.Pool           `json:"pool"`
	LearnerID string              `json:"learner_id"`
	SessionID string              `json:"session_id"`
	Overrides sequencer.Overrides `json:"overrides"`
}

// learnerFor defaults the learner to the token subject and refuses callers
// acting for someone else without permission.
func (d Deps) learnerFor(w http.ResponseWriter, r *http.Request, learnerID string) (string, bool) {
	sub := auth.SubjectFromContext(r.Context())
	if strings.TrimSpace(learnerID) == "" {
		learnerID = sub
	}
	if learnerID != "" && !d.checker().CanActFor(rbac.RoleFromContext(r.Context()), sub, learnerID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return learnerID, true
}

// SequenceHandler orders a pool for one learner session and records the
// exposure.
func SequenceHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sequenceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		learner, ok := d.learnerFor(w, r, req.LearnerID)
		if !ok {
			return
		}
		cfg := d.Defaults.Resolve(req.Pool.TestSetID, req.Overrides)
		res, err := d.Engine.Sequence(r.Context(), req.Pool, cfg, learner, req.SessionID, false)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

type previewRequest struct {
	sequenceRequest
	Samples int `json:"samples"`
}

// PreviewHandler returns sample orderings without touching the ledger. Each
// sample gets a fresh session id unless the request pins one.
func PreviewHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req previewRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		learner, ok := d.learnerFor(w, r, req.LearnerID)
		if !ok {
			return
		}
		n := req.Samples
		if n <= 0 {
			n = d.PreviewSamples
		}
		if n <= 0 {
			n = 1
		}
		n = min(n, maxPreviewSamples)

		cfg := d.Defaults.Resolve(req.Pool.TestSetID, req.Overrides)
		samples := make([]engine.Result, 0, n)
		for i := 0; i < n; i++ {
			session := req.SessionID
			if session == "" {
				session = uuid.NewString()
			}
			res, err := d.Engine.Sequence(r.Context(), req.Pool, cfg, learner, session, true)
			if err != nil {
				respondError(w, err)
				return
			}
			samples = append(samples, res)
		}
		respondJSON(w, http.StatusOK, map[string]any{"samples": samples})
	}
}
