package rbac

const (
	RoleLearner    = "learner"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

const (
	PermSequenceRun     = "sequence:run"
	PermSequencePreview = "sequence:preview"
	PermAnswersPermute  = "answers:permute"
	PermAnswersGrade    = "answers:grade"
	PermExposureRecord  = "exposure:record"
	PermExposureAnalyze = "exposure:analyze"
)

// Default policy. Instructors sample orderings before publishing a test and
// watch exposure; only they may look at other learners' data.
var RolePermissions = map[string][]string{
	RoleLearner: {
		PermSequenceRun,
		"answers:*",
		PermExposureRecord,
	},
	RoleInstructor: {
		PermSequenceRun,
		PermSequencePreview,
		"answers:*",
		PermExposureRecord,
		PermExposureAnalyze,
	},
	RoleAdmin: {
		"*",
	},
}
