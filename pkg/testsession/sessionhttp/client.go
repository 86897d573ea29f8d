package sessionhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-testseries/pkg/testsession/session"
	"golang.org/x/oauth2"
)

// Client talks to the test series REST API and implements session.Backend.
type Client struct {
	base string
	http *http.Client
}

type Config struct {
	BaseURL string
	Timeout time.Duration

	// TokenSource supplies the bearer credential for every request. Nil
	// means requests go out unauthenticated.
	TokenSource oauth2.TokenSource
	// HTTPClient is the underlying client; defaults to http.DefaultClient.
	HTTPClient *http.Client
}

var _ session.Backend = (*Client)(nil)

func New(cfg Config) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	h := base
	if cfg.TokenSource != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		h = oauth2.NewClient(ctx, oauth2.ReuseTokenSource(nil, authTagged{cfg.TokenSource}))
	} else {
		cp := *base
		h = &cp
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{base: strings.TrimRight(cfg.BaseURL, "/"), http: h}
}

// authTagged marks credential provider failures so they surface as
// KindAuthRequired instead of a transport error.
type authTagged struct{ ts oauth2.TokenSource }

func (a authTagged) Token() (*oauth2.Token, error) {
	tok, err := a.ts.Token()
	if err != nil {
		return nil, session.NewError(session.KindAuthRequired, "token", err)
	}
	return tok, nil
}

func (c *Client) FetchTest(ctx context.Context, testID string) (session.Test, error) {
	var t session.Test
	err := c.do(ctx, "fetch test", http.MethodGet, c.path("tests", testID), nil, &t)
	return t, err
}

func (c *Client) FetchProgress(ctx context.Context, testID, userID string) (session.Snapshot, error) {
	var snap session.Snapshot
	err := c.do(ctx, "fetch progress", http.MethodGet, c.path("tests", testID, "progress", userID), nil, &snap)
	return snap, err
}

func (c *Client) SaveProgress(ctx context.Context, testID string, snap session.Snapshot) (session.SaveAck, error) {
	var ack session.SaveAck
	err := c.do(ctx, "save progress", http.MethodPost, c.path("tests", testID, "save-progress"), snap, &ack)
	return ack, err
}

type submitResponse struct {
	Attempt struct {
		ID string `json:"id"`
	} `json:"attempt"`
}

func (c *Client) Submit(ctx context.Context, req session.SubmitRequest) (session.SubmitResponse, error) {
	var out submitResponse
	err := c.do(ctx, "submit", http.MethodPost, c.path("tests", req.TestID, "submit"), req, &out)
	var se *session.Error
	if errors.As(err, &se) && se.Kind == session.KindConflict {
		se.AttemptID = out.Attempt.ID
	}
	if err != nil {
		return session.SubmitResponse{}, err
	}
	return session.SubmitResponse{AttemptID: out.Attempt.ID}, nil
}

func (c *Client) path(parts ...string) string {
	var b strings.Builder
	b.WriteString(c.base)
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

// do sends one request. A 409 still decodes its body into out so callers
// can read the existing attempt.
func (c *Client) do(ctx context.Context, op, method, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return session.NewError(session.KindInvalid, op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return session.NewError(session.KindInvalid, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		var se *session.Error
		if errors.As(err, &se) {
			return session.NewError(se.Kind, op, se.Err)
		}
		return session.NewError(session.KindTransient, op, err)
	}
	defer res.Body.Close()

	if kind, ok := classify(res.StatusCode); ok {
		return session.NewError(kind, op, fmt.Errorf("%s: %s", res.Status, snippet(res.Body, kind == session.KindConflict, out)))
	}

	if out == nil {
		return nil
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return session.NewError(session.KindTransient, op, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return session.NewError(session.KindTransient, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps a non-2xx status to an error kind.
func classify(code int) (session.Kind, bool) {
	switch {
	case code/100 == 2:
		return session.KindUnknown, false
	case code == http.StatusNotFound:
		return session.KindNotFound, true
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return session.KindAuthRequired, true
	case code == http.StatusConflict:
		return session.KindConflict, true
	case code >= 500, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return session.KindTransient, true
	default:
		return session.KindInvalid, true
	}
}

// snippet reads a bounded piece of an error body for the message. When
// decode is set the body is also unmarshalled into out.
func snippet(r io.Reader, decode bool, out any) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	if decode && out != nil {
		_ = json.Unmarshal(raw, out)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
