package sessionhttp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-testseries/pkg/testsession/session"
	"github.com/mind-engage/mindengage-testseries/pkg/testsession/sessionhttp"
	"golang.org/x/oauth2"
)

func newClient(t *testing.T, h http.Handler) *sessionhttp.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return sessionhttp.New(sessionhttp.Config{
		BaseURL:     ts.URL + "/",
		Timeout:     2 * time.Second,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "Bearer"}),
	})
}

func TestFetchTestSendsBearer(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("authorization=%q", got)
		}
		if r.URL.Path != "/tests/mock 1" {
			t.Errorf("path=%q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "mock 1", "title": "Mock", "durationSeconds": 900,
			"questions": []map[string]any{{"id": "q1", "sectionId": "s1", "type": "integer"}},
		})
	}))

	test, err := c.FetchTest(context.Background(), "mock 1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if test.DurationSeconds != 900 || len(test.Questions) != 1 || test.Questions[0].Type != session.TypeInteger {
		t.Fatalf("test=%+v", test)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		code int
		want session.Kind
	}{
		{http.StatusNotFound, session.KindNotFound},
		{http.StatusUnauthorized, session.KindAuthRequired},
		{http.StatusForbidden, session.KindAuthRequired},
		{http.StatusConflict, session.KindConflict},
		{http.StatusBadGateway, session.KindTransient},
		{http.StatusTooManyRequests, session.KindTransient},
		{http.StatusBadRequest, session.KindInvalid},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.code)
			}))
			_, err := c.FetchProgress(context.Background(), "t1", "u1")
			if got := session.KindOf(err); got != tc.want {
				t.Fatalf("kind=%s want %s (err=%v)", got, tc.want, err)
			}
		})
	}
}

func TestSaveProgressPayload(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tests/t1/save-progress" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		for _, k := range []string{"answers", "timeLeft", "markedForReview", "visited"} {
			if _, ok := body[k]; !ok {
				t.Errorf("missing %s in %v", k, body)
			}
		}
		_, _ = w.Write([]byte(`{"attemptId":"a-9"}`))
	}))

	ack, err := c.SaveProgress(context.Background(), "t1", session.Snapshot{
		Answers: map[string]string{"q1": "A"}, TimeLeft: 42,
		MarkedForReview: []string{}, Visited: []string{"q1"},
	})
	if err != nil || ack.AttemptID != "a-9" {
		t.Fatalf("ack=%+v err=%v", ack, err)
	}
}

func TestSaveProgressEmptyBody(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	ack, err := c.SaveProgress(context.Background(), "t1", session.Snapshot{})
	if err != nil || ack.AttemptID != "" {
		t.Fatalf("ack=%+v err=%v", ack, err)
	}
}

func TestSubmitConflictCarriesAttempt(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req session.SubmitRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.AttemptID != "draft-1" || req.TestID != "t1" {
			t.Errorf("request=%+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"already submitted","attempt":{"id":"att-3"}}`))
	}))

	_, err := c.Submit(context.Background(), session.SubmitRequest{TestID: "t1", AttemptID: "draft-1"})
	var se *session.Error
	if !errors.As(err, &se) || se.Kind != session.KindConflict || se.AttemptID != "att-3" {
		t.Fatalf("err=%#v", err)
	}
}

func TestSubmitSuccess(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"attempt":{"id":"att-1"}}`))
	}))
	res, err := c.Submit(context.Background(), session.SubmitRequest{TestID: "t1"})
	if err != nil || res.AttemptID != "att-1" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, errors.New("session expired") }

func TestTokenSourceFailureIsAuthRequired(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer ts.Close()
	c := sessionhttp.New(sessionhttp.Config{BaseURL: ts.URL, TokenSource: failingSource{}})

	_, err := c.FetchTest(context.Background(), "t1")
	if !session.IsAuthRequired(err) {
		t.Fatalf("want auth required, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("request must not be sent without a credential")
	}
}

func TestTransportFailureIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	c := sessionhttp.New(sessionhttp.Config{BaseURL: url, Timeout: time.Second})

	if _, err := c.FetchTest(context.Background(), "t1"); !session.IsTransient(err) {
		t.Fatalf("want transient, got %v", err)
	}
}

func TestMalformedBodyIsTransient(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	if _, err := c.FetchTest(context.Background(), "t1"); !session.IsTransient(err) {
		t.Fatalf("want transient, got %v", err)
	}
}
