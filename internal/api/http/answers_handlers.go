package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/grading"
	"github.com/mind-engage/mindengage-sequencer/internal/permute"
	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

// PermuteAnswersHandler returns the option order of one question for a
// learner session. The config resolves from the test set's defaults and the
// request overrides, so the result matches what SequenceHandler hands out.
func PermuteAnswersHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question  exam.Question       `json:"question"`
			TestSetID string              `json:"test_set_id"`
			LearnerID string              `json:"learner_id"`
			SessionID string              `json:"session_id"`
			Overrides sequencer.Overrides `json:"overrides"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Question.ID == "" {
			http.Error(w, "question.id required", http.StatusBadRequest)
			return
		}
		learner, ok := d.learnerFor(w, r, req.LearnerID)
		if !ok {
			return
		}
		if learner == "" || req.SessionID == "" {
			http.Error(w, "learner_id and session_id required", http.StatusBadRequest)
			return
		}
		cfg := d.Defaults.Resolve(req.TestSetID, req.Overrides)
		if err := cfg.Validate(); err != nil {
			respondError(w, err)
			return
		}
		if !cfg.EnableAnswerRandomization {
			respondJSON(w, http.StatusOK, permute.Identity(req.Question))
			return
		}
		p, err := d.Engine.PermuteAnswers(req.Question, learner, req.SessionID, cfg.PreserveAnswerPositions)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// GradeHandler scores display-index responses against the reverse maps the
// session was sequenced with.
func GradeHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Questions   []exam.Question    `json:"questions"`
			ReverseMaps map[string][]int   `json:"reverse_maps"`
			Responses   []grading.Response `json:"responses"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		g := d.Grader
		if g == nil {
			g = grading.New()
		}
		sheet, err := g.GradeAll(r.Context(), exam.Pool{Questions: req.Questions}.Index(), req.ReverseMaps, req.Responses)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSON(w, http.StatusOK, sheet)
	}
}
