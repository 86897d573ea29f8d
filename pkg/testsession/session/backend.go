package session

import (
	"context"
	"sync"
	"time"
)

// Backend is the remote service of record. Implementations return *Error so
// the session can tell not-found, auth, conflict and transient failures apart.
type Backend interface {
	FetchTest(ctx context.Context, testID string) (Test, error)
	FetchProgress(ctx context.Context, testID, userID string) (Snapshot, error)
	SaveProgress(ctx context.Context, testID string, snap Snapshot) (SaveAck, error)
	Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
}

// DraftCache is the non-authoritative local cache of the server-issued
// attempt id, keyed by test id.
type DraftCache interface {
	LoadAttemptID(ctx context.Context, testID string) (string, bool, error)
	StoreAttemptID(ctx context.Context, testID, attemptID string) error
	Clear(ctx context.Context, testID string) error
}

type memoryDraftCache struct {
	mu  sync.Mutex
	ids map[string]string
}

func NewMemoryDraftCache() DraftCache {
	return &memoryDraftCache{ids: map[string]string{}}
}

func (m *memoryDraftCache) LoadAttemptID(_ context.Context, testID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[testID]
	return id, ok, nil
}

func (m *memoryDraftCache) StoreAttemptID(_ context.Context, testID, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[testID] = attemptID
	return nil
}

func (m *memoryDraftCache) Clear(_ context.Context, testID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, testID)
	return nil
}

type Config struct {
	TestID string
	UserID string

	AutosaveInterval time.Duration
	TeardownTimeout  time.Duration

	FetchTestRetry     RetryPolicy
	FetchProgressRetry RetryPolicy
	SubmitRetry        RetryPolicy
}

func DefaultConfig(testID, userID string) Config {
	return Config{
		TestID:           testID,
		UserID:           userID,
		AutosaveInterval: 30 * time.Second,
		TeardownTimeout:  3 * time.Second,
		FetchTestRetry: RetryPolicy{
			MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 4 * time.Second, Multiplier: 2,
		},
		FetchProgressRetry: RetryPolicy{
			MaxAttempts: 2, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 2 * time.Second, Multiplier: 2,
		},
		SubmitRetry: RetryPolicy{
			MaxAttempts: 3, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2,
		},
	}
}
