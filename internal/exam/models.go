package exam

type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Section struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title"`
}

type Question struct {
	ID        string   `json:"id" validate:"required"`
	SectionID string   `json:"sectionId" validate:"required"`
	Type      string   `json:"type" validate:"oneof=single_choice multi_select boolean free_text integer matching"`
	Prompt    string   `json:"prompt,omitempty"`
	Choices   []Choice `json:"options,omitempty"`
	AnswerKey []string `json:"answerKey,omitempty"`
	Points    float64  `json:"points,omitempty" validate:"gte=0"`
}

type Test struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	DurationSeconds int        `json:"durationSeconds" validate:"gt=0"`
	Sections        []Section  `json:"sections" validate:"dive"`
	Questions       []Question `json:"questions" validate:"required,min=1,dive"`

	CreatedAt int64 `json:"createdAt,omitempty"`
}

type TestSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds"`
	Questions       int    `json:"questions"`
}

// Progress is the resume aid stored against the in-progress attempt.
type Progress struct {
	Answers         map[string]string `json:"answers"`
	TimeLeft        int               `json:"timeLeft" validate:"gte=0"`
	MarkedForReview []string          `json:"markedForReview"`
	Visited         []string          `json:"visited"`
}

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

type Attempt struct {
	ID          string            `json:"id"`
	TestID      string            `json:"testId"`
	UserID      string            `json:"userId"`
	Status      string            `json:"status"` // in_progress|submitted
	Score       float64           `json:"score"`
	MaxScore    float64           `json:"maxScore"`
	Progress    Progress          `json:"-"`
	Answers     map[string]string `json:"answers,omitempty"`
	TimeLeft    int               `json:"timeLeft"`
	StartedAt   int64             `json:"startedAt"`
	SubmittedAt int64             `json:"submittedAt,omitempty"`
}

type SubmitInput struct {
	TestID    string            `json:"testId" validate:"required"`
	UserID    string            `json:"-"`
	AttemptID string            `json:"attemptId,omitempty"`
	Answers   map[string]string `json:"answers"`
	TimeLeft  int               `json:"timeLeft" validate:"gte=0"`
}

// StripKeys returns a copy of t that is safe to serve to test takers.
func StripKeys(t Test) Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.AnswerKey = nil
		qs[i] = q
	}
	t.Questions = qs
	return t
}
