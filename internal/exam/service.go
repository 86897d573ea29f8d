package exam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-testseries/internal/grading"
)

type memoryStore struct {
	mu       sync.RWMutex
	tests    map[string]Test
	attempts map[string]Attempt
	current  map[string]string // testID|userID -> attempt id
	grader   grading.Grader
	now      func() time.Time
}

func NewInMemoryStore(g grading.Grader) Store {
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	return &memoryStore{
		tests:    map[string]Test{},
		attempts: map[string]Attempt{},
		current:  map[string]string{},
		grader:   g,
		now:      time.Now,
	}
}

func attemptKey(testID, userID string) string { return testID + "|" + userID }

func (m *memoryStore) PutTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.CreatedAt == 0 {
		t.CreatedAt = m.now().Unix()
	}
	m.tests[t.ID] = t
	return nil
}

func (m *memoryStore) GetTest(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrTestNotFound
	}
	return StripKeys(t), nil
}

func (m *memoryStore) ListTests(_ context.Context) ([]TestSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TestSummary, 0, len(m.tests))
	for _, t := range m.tests {
		out = append(out, TestSummary{ID: t.ID, Title: t.Title, DurationSeconds: t.DurationSeconds, Questions: len(t.Questions)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) GetProgress(_ context.Context, testID, userID string) (Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.tests[testID]; !ok {
		return Progress{}, ErrTestNotFound
	}
	a, ok := m.attempts[m.current[attemptKey(testID, userID)]]
	if !ok || a.Status != StatusInProgress {
		return Progress{}, ErrProgressNotFound
	}
	return a.Progress, nil
}

func (m *memoryStore) SaveProgress(_ context.Context, testID, userID string, p Progress) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[testID]
	if !ok {
		return Attempt{}, ErrTestNotFound
	}
	key := attemptKey(testID, userID)
	a, ok := m.attempts[m.current[key]]
	if ok && a.Status == StatusSubmitted {
		return a, ErrAlreadySubmitted
	}
	if !ok {
		a = Attempt{ID: uuid.NewString(), TestID: testID, UserID: userID, Status: StatusInProgress, StartedAt: m.now().Unix()}
		m.current[key] = a.ID
	}
	p.Answers = filterAnswers(t, p.Answers)
	a.Progress = p
	a.TimeLeft = p.TimeLeft
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) Submit(ctx context.Context, in SubmitInput) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[in.TestID]
	if !ok {
		return Attempt{}, ErrTestNotFound
	}
	key := attemptKey(in.TestID, in.UserID)
	a, ok := m.attempts[m.current[key]]
	if ok && a.Status == StatusSubmitted {
		return a, ErrAlreadySubmitted
	}
	if !ok {
		a = Attempt{ID: uuid.NewString(), TestID: in.TestID, UserID: in.UserID, StartedAt: m.now().Unix()}
		m.current[key] = a.ID
	}
	a.Answers = filterAnswers(t, in.Answers)
	a.Score, a.MaxScore = score(ctx, m.grader, t, a.Answers)
	a.TimeLeft = in.TimeLeft
	a.Status = StatusSubmitted
	a.SubmittedAt = m.now().Unix()
	a.Progress = Progress{}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}
