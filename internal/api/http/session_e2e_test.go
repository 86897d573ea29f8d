package http_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/mind-engage/mindengage-testseries/internal/exam"
	"github.com/mind-engage/mindengage-testseries/pkg/testsession/session"
	"github.com/mind-engage/mindengage-testseries/pkg/testsession/sessionhttp"
	"github.com/mind-engage/mindengage-testseries/pkg/testsession/sqlcache"
)

func newSession(t *testing.T, s *server, cache *sqlcache.Store, user string) *session.Manager {
	t.Helper()
	client := sessionhttp.New(sessionhttp.Config{
		BaseURL:     s.url,
		Timeout:     5 * time.Second,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token(t, user, "student"), TokenType: "Bearer"}),
	})
	cfg := session.DefaultConfig("mock-1", user)
	cfg.AutosaveInterval = time.Hour
	return session.New(cfg, client, session.WithDraftCache(cache))
}

func TestSessionAgainstRouter(t *testing.T) {
	s, store := newServer(t)
	ctx := context.Background()
	cache, err := sqlcache.Open(ctx, "sqlite", "file:"+filepath.Join(t.TempDir(), "drafts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cache.Close() })

	// progress left behind by an earlier sitting
	prev := exam.Progress{Answers: map[string]string{"q3": "true"}, TimeLeft: 300, Visited: []string{"q3"}}
	if code := s.do(http.MethodPost, "/tests/mock-1/save-progress", token(t, "u1", "student"), prev, nil); code != http.StatusOK {
		t.Fatalf("seed progress code=%d", code)
	}

	m := newSession(t, s, cache, "u1")
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if tl := m.TimeLeft(); tl > 300 || tl < 298 {
		t.Fatalf("restored time=%d", tl)
	}
	if st := m.Stats(); st.Answered != 1 || st.Total != 3 {
		t.Fatalf("restored stats=%+v", st)
	}

	if err := m.SetAnswer("q1", "B"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetAnswer("q2", 12); err != nil {
		t.Fatal(err)
	}
	res, err := m.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	m.Dispose(ctx)

	a, err := store.GetAttempt(ctx, res.AttemptID)
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if a.Status != exam.StatusSubmitted || a.Score != 10 || a.MaxScore != 10 {
		t.Fatalf("attempt=%+v", a)
	}
	if _, ok, _ := cache.LoadAttemptID(ctx, "mock-1"); ok {
		t.Fatalf("draft id must be cleared after submission")
	}

	// a second sitting finds nothing to restore and resubmission is a duplicate
	again := newSession(t, s, cache, "u1")
	if err := again.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer again.Dispose(ctx)
	dup, err := again.Submit(ctx)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !dup.Duplicate || dup.AttemptID != res.AttemptID {
		t.Fatalf("resubmit result=%+v", dup)
	}
}

func TestSessionStartUnknownTest(t *testing.T) {
	s, _ := newServer(t)
	client := sessionhttp.New(sessionhttp.Config{
		BaseURL:     s.url,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token(t, "u1", "student")}),
	})
	m := session.New(session.DefaultConfig("nope", "u1"), client)
	defer m.Dispose(context.Background())
	if err := m.Start(context.Background()); !session.IsNotFound(err) {
		t.Fatalf("got %v", err)
	}
}

func TestSessionExpiredCredential(t *testing.T) {
	s, _ := newServer(t)
	client := sessionhttp.New(sessionhttp.Config{
		BaseURL:     s.url,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "stale"}),
	})
	m := session.New(session.DefaultConfig("mock-1", "u1"), client)
	defer m.Dispose(context.Background())
	if err := m.Start(context.Background()); !session.IsAuthRequired(err) {
		t.Fatalf("got %v", err)
	}
}
