package session_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-testseries/pkg/testsession/session"
)

func newSyncer(fb *fakeBackend) (*session.Synchronizer, *session.AnswerSheet, *session.Clock, session.DraftCache) {
	sheet := session.NewAnswerSheet(nil)
	clock := session.NewClock(nil)
	cache := session.NewMemoryDraftCache()
	return session.NewSynchronizer(fastConfig(), fb, sheet, clock, cache, nil), sheet, clock, cache
}

func TestRestoreWithoutProgressStartsFresh(t *testing.T) {
	fb := newFakeBackend(4, 600)
	s, sheet, clock, _ := newSyncer(fb)

	applied, err := s.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if applied {
		t.Fatalf("no snapshot, no time applied")
	}
	if clock.Remaining() != 600 {
		t.Fatalf("remaining=%d want 600", clock.Remaining())
	}
	if st := sheet.Stats(); st.NotVisited != 4 || st.Total != 4 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestRestoreAppliesSnapshot(t *testing.T) {
	fb := newFakeBackend(6, 600)
	fb.progress = &session.Snapshot{
		Answers:         map[string]string{"q1": "A", "q2": "B", "retired-9": "C"},
		MarkedForReview: []string{"q2", "q3", "retired-8"},
		Visited:         []string{"q1", "q2", "q4", "retired-7"},
		TimeLeft:        420,
	}
	s, sheet, clock, _ := newSyncer(fb)

	applied, err := s.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !applied || clock.Remaining() != 420 {
		t.Fatalf("applied=%v remaining=%d", applied, clock.Remaining())
	}

	want := map[string]session.Status{
		"q1": session.StatusAnswered,
		"q2": session.StatusMarkedForReview,
		"q3": session.StatusMarkedForReview,
		"q4": session.StatusVisited,
		"q5": session.StatusNotVisited,
	}
	for id, st := range want {
		if got := sheet.Status(id); got != st {
			t.Errorf("%s: status=%s want %s", id, got, st)
		}
	}
	if _, ok := sheet.Answer("retired-9"); ok {
		t.Fatalf("answers for questions outside the test must be dropped")
	}
	if got := len(sheet.Answers()); got != 2 {
		t.Fatalf("answers=%v", sheet.Answers())
	}
}

func TestRestoreClampsTimeLeft(t *testing.T) {
	for _, tl := range []int{0, -3, 900} {
		t.Run(fmt.Sprint(tl), func(t *testing.T) {
			fb := newFakeBackend(2, 600)
			fb.progress = &session.Snapshot{TimeLeft: tl}
			s, _, clock, _ := newSyncer(fb)
			applied, err := s.Restore(context.Background())
			if err != nil {
				t.Fatalf("restore: %v", err)
			}
			if applied {
				t.Fatalf("out of range time must not be applied")
			}
			if clock.Remaining() != 600 {
				t.Fatalf("remaining=%d want 600", clock.Remaining())
			}
		})
	}
}

func TestRestoreTestNotFoundIsFatal(t *testing.T) {
	fb := newFakeBackend(2, 600)
	fb.testErr = session.NewError(session.KindNotFound, "fetch test", nil)
	s, _, _, _ := newSyncer(fb)

	_, err := s.Restore(context.Background())
	if !session.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestRestoreProgressAuthFailureEscalates(t *testing.T) {
	fb := newFakeBackend(2, 600)
	fb.progressErr = session.NewError(session.KindAuthRequired, "fetch progress", nil)
	s, _, _, _ := newSyncer(fb)

	_, err := s.Restore(context.Background())
	if !session.IsAuthRequired(err) {
		t.Fatalf("want auth required, got %v", err)
	}
}

func TestConcurrentRestoreIsRejected(t *testing.T) {
	fb := newFakeBackend(2, 600)
	fb.fetchTestGate = make(chan struct{})
	s, _, _, _ := newSyncer(fb)

	first := make(chan error, 1)
	go func() {
		_, err := s.Restore(context.Background())
		first <- err
	}()
	eventually(t, "first restore to reach the backend", func() bool {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		return fb.fetchTestCalls == 1
	})

	if _, err := s.Restore(context.Background()); !errors.Is(err, session.ErrRestoreInProgress) {
		t.Fatalf("second restore: got %v", err)
	}
	close(fb.fetchTestGate)
	if err := <-first; err != nil {
		t.Fatalf("first restore: %v", err)
	}
	if fb.fetchTestCalls != 1 {
		t.Fatalf("fetch test called %d times", fb.fetchTestCalls)
	}
}

func TestRestoreRetriesTransientFetch(t *testing.T) {
	fb := newFakeBackend(2, 600)
	fb.testErr = session.NewError(session.KindTransient, "fetch test", errors.New("502"))
	cfg := fastConfig()
	cfg.FetchTestRetry = session.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}
	s := session.NewSynchronizer(cfg, fb, session.NewAnswerSheet(nil), session.NewClock(nil), nil, nil)

	if _, err := s.Restore(context.Background()); !session.IsTransient(err) {
		t.Fatalf("want transient, got %v", err)
	}
	if fb.fetchTestCalls != 3 {
		t.Fatalf("fetch test calls=%d want 3", fb.fetchTestCalls)
	}
}

func TestSavePayloadAndAck(t *testing.T) {
	fb := newFakeBackend(4, 600)
	fb.saveAck = session.SaveAck{AttemptID: "att-77"}
	s, sheet, clock, cache := newSyncer(fb)
	if _, err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	clock.SetRemaining(300)
	sheet.SetAnswer("q1", "A")
	sheet.SetAnswer("q2", "")
	sheet.MarkForReview("q3")

	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	got := fb.saves[0]
	if got.TimeLeft != 300 || len(got.Answers) != 1 || got.Answers["q1"] != "A" {
		t.Fatalf("payload=%+v", got)
	}
	if fmt.Sprint(got.MarkedForReview) != "[q3]" {
		t.Fatalf("markedForReview=%v", got.MarkedForReview)
	}
	if id, ok, _ := cache.LoadAttemptID(context.Background(), "t1"); !ok || id != "att-77" {
		t.Fatalf("attempt id not cached: %q %v", id, ok)
	}
}

func TestSaveFailureLeavesStateUntouched(t *testing.T) {
	fb := newFakeBackend(4, 600)
	fb.saveErr = session.NewError(session.KindTransient, "save progress", errors.New("connection reset"))
	s, sheet, _, _ := newSyncer(fb)
	if _, err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	sheet.SetAnswer("q1", "A")

	s.SaveIfAnswered(context.Background())
	if fb.saveCount() != 1 {
		t.Fatalf("saves=%d", fb.saveCount())
	}
	sheet.SetAnswer("q2", "B")
	if st := sheet.Stats(); st.Answered != 2 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestIntervalSaveSkipsWithoutAnswers(t *testing.T) {
	fb := newFakeBackend(2, 600)
	s, _, _, _ := newSyncer(fb)
	if _, err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	s.SaveIfAnswered(context.Background())
	if fb.saveCount() != 0 {
		t.Fatalf("interval save without answers must not hit the backend")
	}
}
