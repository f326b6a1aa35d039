package exam

import "strings"

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeText           QuestionType = "text"
	TypeMatching       QuestionType = "matching"
	TypeOrdering       QuestionType = "ordering"
)

// IsChoice reports whether learners pick from a list of options.
func (t QuestionType) IsChoice() bool {
	return t == TypeMultipleChoice || t == TypeTrueFalse
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Rank orders difficulties easy < medium < hard. Unknown values rank 0.
func (d Difficulty) Rank() int {
	switch Difficulty(strings.ToLower(string(d))) {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 0
	}
}

type Choice struct {
	ID        string `json:"id,omitempty"`
	LabelHTML string `json:"label_html,omitempty"`
}

type Question struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	PromptHTML string       `json:"prompt_html,omitempty"`

	Choices   []Choice `json:"choices,omitempty"`
	AnswerKey []string `json:"answer_key,omitempty"` // choice ids for choice types, accepted strings otherwise
	Points    float64  `json:"points"`

	Category       string     `json:"category,omitempty"`
	Difficulty     Difficulty `json:"difficulty,omitempty"`
	CognitiveLevel int        `json:"cognitive_level,omitempty"` // Bloom-style 1..6
}

// Shuffleable reports whether the answer permuter has anything to do.
func (q Question) Shuffleable() bool {
	return q.Type.IsChoice() && len(q.Choices) > 1
}

// Pool is the set of questions of one evaluation instance. It is supplied
// per call and never retained.
type Pool struct {
	TestSetID string     `json:"test_set_id"`
	Questions []Question `json:"questions"`
}

func (p Pool) Len() int { return len(p.Questions) }

// IDs returns question ids in pool order.
func (p Pool) IDs() []string {
	out := make([]string, len(p.Questions))
	for i, q := range p.Questions {
		out[i] = q.ID
	}
	return out
}

// Index maps question id -> question.
func (p Pool) Index() map[string]Question {
	m := make(map[string]Question, len(p.Questions))
	for _, q := range p.Questions {
		m[q.ID] = q
	}
	return m
}
