package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-testseries/pkg/testsession/session"
)

/* ---------------- fake backend ---------------- */

type fakeBackend struct {
	mu sync.Mutex

	test    session.Test
	testErr error

	progress    *session.Snapshot
	progressErr error

	saves   []session.Snapshot
	saveErr error
	saveAck session.SaveAck

	submits    []session.SubmitRequest
	submitErrs []error // consumed front to back; nil entries mean success
	submitID   string

	fetchTestCalls int
	fetchTestGate  chan struct{}
	submitGate     chan struct{}
}

func newFakeBackend(n, duration int) *fakeBackend {
	qs := make([]session.Question, 0, n)
	for i := 1; i <= n; i++ {
		sec := "s1"
		if i > n/2 {
			sec = "s2"
		}
		qs = append(qs, session.Question{ID: fmt.Sprintf("q%d", i), SectionID: sec, Type: session.TypeSingleChoice})
	}
	return &fakeBackend{
		test: session.Test{
			ID:              "t1",
			Title:           "Mock Test",
			DurationSeconds: duration,
			Sections:        []session.Section{{ID: "s1", Title: "One"}, {ID: "s2", Title: "Two"}},
			Questions:       qs,
		},
		progressErr: session.NewError(session.KindNotFound, "fetch progress", nil),
		submitID:    "attempt-1",
	}
}

func (f *fakeBackend) FetchTest(ctx context.Context, testID string) (session.Test, error) {
	f.mu.Lock()
	f.fetchTestCalls++
	gate := f.fetchTestGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return session.Test{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.testErr != nil {
		return session.Test{}, f.testErr
	}
	return f.test, nil
}

func (f *fakeBackend) FetchProgress(_ context.Context, testID, userID string) (session.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progress != nil {
		return *f.progress, nil
	}
	return session.Snapshot{}, f.progressErr
}

func (f *fakeBackend) SaveProgress(_ context.Context, testID string, snap session.Snapshot) (session.SaveAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, snap)
	if f.saveErr != nil {
		return session.SaveAck{}, f.saveErr
	}
	return f.saveAck, nil
}

func (f *fakeBackend) Submit(ctx context.Context, req session.SubmitRequest) (session.SubmitResponse, error) {
	f.mu.Lock()
	f.submits = append(f.submits, req)
	gate := f.submitGate
	var err error
	if len(f.submitErrs) > 0 {
		err = f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
	}
	id := f.submitID
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return session.SubmitResponse{}, err
	}
	return session.SubmitResponse{AttemptID: id}, nil
}

func (f *fakeBackend) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func (f *fakeBackend) lastSubmit() session.SubmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits[len(f.submits)-1]
}

/* ---------------- manual tickers ---------------- */

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.once.Do(func() { close(m.stopped) }) }

type tickers struct {
	mu  sync.Mutex
	all map[time.Duration]*manualTicker
}

func newTickers() *tickers { return &tickers{all: map[time.Duration]*manualTicker{}} }

func (t *tickers) factory(d time.Duration) session.Ticker {
	t.mu.Lock()
	defer t.mu.Unlock()
	mt := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	t.all[d] = mt
	return mt
}

func (t *tickers) get(tb testing.TB, d time.Duration) *manualTicker {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		mt := t.all[d]
		t.mu.Unlock()
		if mt != nil {
			return mt
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("ticker for %s never created", d)
	return nil
}

// fire delivers one tick, failing the test if the loop is not receiving.
func (m *manualTicker) fire(tb testing.TB) {
	tb.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(2 * time.Second):
		tb.Fatalf("tick not consumed")
	}
}

func eventually(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	tb.Fatalf("timed out waiting for %s", what)
}

func fastConfig() session.Config {
	cfg := session.DefaultConfig("t1", "u1")
	fast := session.RetryPolicy{MaxAttempts: 1}
	cfg.FetchTestRetry = fast
	cfg.FetchProgressRetry = fast
	cfg.SubmitRetry = fast
	cfg.AutosaveInterval = 30 * time.Second
	cfg.TeardownTimeout = 200 * time.Millisecond
	return cfg
}
