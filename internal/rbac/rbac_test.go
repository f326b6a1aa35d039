package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	tests := []struct {
		role, perm string
		want       bool
	}{
		{RoleLearner, PermSequenceRun, true},
		{RoleLearner, PermAnswersGrade, true},
		{RoleLearner, PermSequencePreview, false},
		{RoleLearner, PermExposureAnalyze, false},
		{RoleInstructor, PermSequencePreview, true},
		{RoleInstructor, PermExposureAnalyze, true},
		{RoleInstructor, PermActForOthers, false},
		{RoleAdmin, PermActForOthers, true},
		{"guest", PermSequenceRun, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Has(tt.role, tt.perm), "%s %s", tt.role, tt.perm)
	}
}

func TestCanActFor(t *testing.T) {
	c := NewChecker(map[string][]string{
		RoleLearner:    {PermSequenceRun},
		RoleInstructor: {PermSequenceRun, PermActForOthers},
	})
	assert.True(t, c.CanActFor(RoleLearner, "alice", "alice"))
	assert.False(t, c.CanActFor(RoleLearner, "alice", "bob"))
	assert.True(t, c.CanActFor(RoleInstructor, "carol", "bob"))
	assert.False(t, c.CanActFor(RoleInstructor, "carol", ""))
}

func TestRequire(t *testing.T) {
	h := Require(PermExposureAnalyze)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for role, want := range map[string]int{
		"":             http.StatusForbidden,
		RoleLearner:    http.StatusForbidden,
		RoleInstructor: http.StatusNoContent,
		RoleAdmin:      http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}
