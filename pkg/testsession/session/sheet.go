package session

import (
	"sync"

	"go.uber.org/zap"
)

// AnswerSheet holds the answers and the per-question status of one attempt.
// The status transitions implemented here are the only legal mutators.
type AnswerSheet struct {
	mu        sync.RWMutex
	log       *zap.Logger
	questions []Question
	index     map[string]int
	answers   map[string]string
	status    map[string]Status
	version   uint64
}

func NewAnswerSheet(log *zap.Logger) *AnswerSheet {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnswerSheet{
		log:     log,
		index:   map[string]int{},
		answers: map[string]string{},
		status:  map[string]Status{},
	}
}

// Load installs the question set and resets every status to not_visited.
func (s *AnswerSheet) Load(questions []Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append([]Question(nil), questions...)
	s.index = make(map[string]int, len(questions))
	s.answers = map[string]string{}
	s.status = make(map[string]Status, len(questions))
	for i, q := range questions {
		s.index[q.ID] = i
		s.status[q.ID] = StatusNotVisited
	}
	s.version++
}

// SetAnswer normalizes raw for the question type and stores it. An empty
// value removes the answer. It reports whether the id was known.
func (s *AnswerSheet) SetAnswer(id string, raw any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		s.log.Debug("set answer for unknown question ignored", zap.String("question_id", id))
		return false
	}
	v := normalize(s.questions[i].Type, raw)
	if v == "" {
		if _, had := s.answers[id]; had {
			delete(s.answers, id)
			s.version++
		}
		if s.status[id] == StatusAnswered {
			s.status[id] = StatusVisited
			s.version++
		}
		return true
	}
	if s.answers[id] != v || s.status[id] != StatusAnswered {
		s.version++
	}
	s.answers[id] = v
	s.status[id] = StatusAnswered
	return true
}

// MarkForReview overrides the status regardless of answer presence.
func (s *AnswerSheet) MarkForReview(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		s.log.Debug("mark for review on unknown question ignored", zap.String("question_id", id))
		return false
	}
	if s.status[id] != StatusMarkedForReview {
		s.status[id] = StatusMarkedForReview
		s.version++
	}
	return true
}

// UnmarkReview drops a review mark and re-derives the status from answer
// presence.
func (s *AnswerSheet) UnmarkReview(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return false
	}
	if s.status[id] != StatusMarkedForReview {
		return true
	}
	if _, has := s.answers[id]; has {
		s.status[id] = StatusAnswered
	} else {
		s.status[id] = StatusVisited
	}
	s.version++
	return true
}

// Visit promotes not_visited to visited. Visiting is sticky.
func (s *AnswerSheet) Visit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return false
	}
	if s.status[id] == StatusNotVisited {
		s.status[id] = StatusVisited
		s.version++
	}
	return true
}

func (s *AnswerSheet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *AnswerSheet) Answer(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.answers[id]
	return v, ok
}

// Status returns the status of id, or not_visited for unknown ids.
func (s *AnswerSheet) Status(id string) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.status[id]; ok {
		return st
	}
	return StatusNotVisited
}

func (s *AnswerSheet) Questions() []Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Question(nil), s.questions...)
}

func (s *AnswerSheet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// Answers returns a copy restricted to known question ids.
func (s *AnswerSheet) Answers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.answers))
	for id, v := range s.answers {
		if _, ok := s.index[id]; ok && v != "" {
			out[id] = v
		}
	}
	return out
}

func (s *AnswerSheet) HasAnswers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers) > 0
}

// Version changes on every effective mutation.
func (s *AnswerSheet) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot builds the save payload from the current state.
func (s *AnswerSheet) Snapshot(timeLeft int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Answers:         make(map[string]string, len(s.answers)),
		TimeLeft:        timeLeft,
		MarkedForReview: []string{},
		Visited:         []string{},
	}
	for _, q := range s.questions {
		if v, ok := s.answers[q.ID]; ok && v != "" {
			snap.Answers[q.ID] = v
		}
		switch s.status[q.ID] {
		case StatusMarkedForReview:
			snap.MarkedForReview = append(snap.MarkedForReview, q.ID)
			snap.Visited = append(snap.Visited, q.ID)
		case StatusVisited, StatusAnswered:
			snap.Visited = append(snap.Visited, q.ID)
		}
	}
	return snap
}

func (s *AnswerSheet) Palette() []PaletteEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PaletteEntry, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, PaletteEntry{QuestionID: q.ID, SectionID: q.SectionID, Status: s.status[q.ID]})
	}
	return out
}

// Stats reconciles the current state into summary counts.
func (s *AnswerSheet) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.questions, s.status, s.answers, s.log)
}
