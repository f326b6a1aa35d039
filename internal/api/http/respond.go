package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-sequencer/internal/config"
	"github.com/mind-engage/mindengage-sequencer/internal/engine"
	"github.com/mind-engage/mindengage-sequencer/internal/grading"
	"github.com/mind-engage/mindengage-sequencer/internal/ledger"
	"github.com/mind-engage/mindengage-sequencer/internal/rbac"
	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

// Deps is everything the handlers share.
type Deps struct {
	Engine   *engine.Engine
	Defaults *config.Defaults
	Grader   *grading.Grader
	// Checker decides who may act for other learners; nil uses rbac.Default().
	Checker *rbac.Checker
	// PreviewSamples is the sample count when a preview request omits it.
	PreviewSamples int
}

const (
	maxPreviewSamples = 50
	// maxBodyBytes caps every JSON request body.
	maxBodyBytes = 4 << 20
)

func (d Deps) checker() *rbac.Checker {
	if d.Checker == nil {
		return rbac.Default()
	}
	return d.Checker
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps engine errors onto status codes. Everything the caller
// can fix is a 400.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case sequencer.IsConfigurationError(err),
		errors.Is(err, sequencer.ErrEmptyPool),
		errors.Is(err, engine.ErrMissingIdentity),
		errors.Is(err, ledger.ErrInvalidExposure):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a size-capped JSON body into v. On failure it has already
// written the response: 413 for an oversized body, 400 otherwise.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit), http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// splitIDs accepts ?ids=a,b&ids=c.
func splitIDs(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
