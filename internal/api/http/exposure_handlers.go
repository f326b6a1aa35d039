package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-sequencer/internal/analytics"
)

const defaultPeriodDays = 30

// RecordExposureHandler records questions shown outside SequenceHandler,
// e.g. by a client that sequenced offline.
func RecordExposureHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LearnerID   string   `json:"learner_id"`
			SessionID   string   `json:"session_id"`
			QuestionIDs []string `json:"question_ids"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		learner, ok := d.learnerFor(w, r, req.LearnerID)
		if !ok {
			return
		}
		if len(req.QuestionIDs) == 0 {
			http.Error(w, "question_ids required", http.StatusBadRequest)
			return
		}
		n := 0
		for _, id := range req.QuestionIDs {
			if err := d.Engine.RecordExposure(r.Context(), id, learner, req.SessionID); err != nil {
				respondError(w, err)
				return
			}
			n++
		}
		respondJSON(w, http.StatusCreated, map[string]any{"recorded": n})
	}
}

// ExposureRatesHandler serves GET /v1/exposures/rates?ids=a,b&period_days=30.
func ExposureRatesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := splitIDs(r.URL.Query()["ids"])
		if len(ids) == 0 {
			http.Error(w, "ids required", http.StatusBadRequest)
			return
		}
		period := parseIntDefault(r.URL.Query().Get("period_days"), defaultPeriodDays)
		rates, err := d.Engine.ExposureRates(r.Context(), ids, period)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"period_days": period, "rates": rates})
	}
}

// ExposureReportHandler categorizes rates and summarizes them. ?top=n adds
// the n most exposed questions.
func ExposureReportHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := splitIDs(r.URL.Query()["ids"])
		if len(ids) == 0 {
			http.Error(w, "ids required", http.StatusBadRequest)
			return
		}
		period := parseIntDefault(r.URL.Query().Get("period_days"), defaultPeriodDays)
		rep, err := d.Engine.Analyze(r.Context(), ids, period)
		if err != nil {
			respondError(w, err)
			return
		}
		out := struct {
			analytics.Report
			MostExposed []analytics.Item `json:"most_exposed,omitempty"`
		}{Report: rep}
		if top := parseIntDefault(r.URL.Query().Get("top"), 0); top > 0 {
			out.MostExposed = rep.MostExposed(top)
		}
		respondJSON(w, http.StatusOK, out)
	}
}
