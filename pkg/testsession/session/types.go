// pkg/testsession/session/types.go
package session

type QuestionType string

const (
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiSelect  QuestionType = "multi_select"
	TypeBoolean      QuestionType = "boolean"
	TypeFreeText     QuestionType = "free_text"
	TypeInteger      QuestionType = "integer"
	TypeMatching     QuestionType = "matching"
)

type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

type Section struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Question is server-authored and never changes during an attempt.
type Question struct {
	ID        string       `json:"id"`
	SectionID string       `json:"sectionId"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt,omitempty"`
	Options   []Choice     `json:"options,omitempty"`
}

type Test struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationSeconds int        `json:"durationSeconds"`
	Sections        []Section  `json:"sections"`
	Questions       []Question `json:"questions"`
}

// Pair is one left/right association of a matching question.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type Status string

const (
	StatusNotVisited      Status = "not_visited"
	StatusVisited         Status = "visited"
	StatusAnswered        Status = "answered"
	StatusMarkedForReview Status = "marked_for_review"
)

// Snapshot is the persisted resume aid. It is not used for grading.
type Snapshot struct {
	Answers         map[string]string `json:"answers"`
	TimeLeft        int               `json:"timeLeft"`
	MarkedForReview []string          `json:"markedForReview"`
	Visited         []string          `json:"visited"`
}

type Stats struct {
	Total           int `json:"total"`
	Answered        int `json:"answered"`
	NotVisited      int `json:"notVisited"`
	Visited         int `json:"visited"`
	MarkedForReview int `json:"markedForReview"`
}

// SaveAck is what the backend returns for an accepted progress save.
// AttemptID is empty when the backend does not track in-progress attempts.
type SaveAck struct {
	AttemptID string `json:"attemptId,omitempty"`
}

type SubmitRequest struct {
	TestID    string            `json:"testId"`
	Answers   map[string]string `json:"answers"`
	TimeLeft  int               `json:"timeLeft"`
	AttemptID string            `json:"attemptId,omitempty"`
}

type SubmitResponse struct {
	AttemptID string
}

type SubmitResult struct {
	AttemptID string
	Duplicate bool // backend reported the attempt as already submitted
	Forced    bool // triggered by clock expiry
}

type PaletteEntry struct {
	QuestionID string
	SectionID  string
	Status     Status
}

// View is the read model handed to the presentation layer.
type View struct {
	TestID       string
	Title        string
	Index        int
	Question     Question
	Status       Status
	Answer       string
	HasAnswer    bool
	TimeLeft     int
	Stats        Stats
	State        SubmitState
	AttemptID    string
	SubmitError  error
	Palette      []PaletteEntry
	DurationSecs int
}
