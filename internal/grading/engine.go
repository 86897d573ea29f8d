package grading

import (
	"context"
	"fmt"
	"strings"
)

// Q is the part of a question grading needs.
type Q struct {
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single response.
type Result struct {
	AutoPoints float64
	MaxPoints  float64
	Feedback   []string
}

// Strategy grades one question type. Responses arrive in the normalized
// string form the session client submits.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points}, fmt.Errorf("no grading strategy for type %q", q.Type)
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	MaxEditDistance     int  // free-text fuzzy match
	AllowPartialMulti   bool // multi-select partial credit without false positives
	AllowPartialMatches bool // matching partial credit per correct pair
}

func WithMaxEditDistance(n int) Option  { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialMulti(b bool) Option    { return func(c *config) { c.AllowPartialMulti = b } }
func WithPartialMatching(b bool) Option { return func(c *config) { c.AllowPartialMatches = b } }

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance:     1,
		AllowPartialMulti:   true,
		AllowPartialMatches: true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			"single_choice": exactStrategy{},
			"boolean":       exactStrategy{fold: true},
			"multi_select":  multiSelectStrategy{allowPartial: cfg.AllowPartialMulti},
			"free_text":     freeTextStrategy{maxEdit: cfg.MaxEditDistance},
			"integer":       numericStrategy{},
			"matching":      matchingStrategy{allowPartial: cfg.AllowPartialMatches},
		},
	}
}

// --- Strategies ---

type exactStrategy struct{ fold bool }

func (s exactStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp := strings.TrimSpace(response)
	for _, k := range q.AnswerKey {
		if resp == k || (s.fold && strings.EqualFold(resp, k)) {
			res.AutoPoints = q.Points
			return res, nil
		}
	}
	return res, nil
}

type multiSelectStrategy struct{ allowPartial bool }

func (s multiSelectStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	correct := toSet(q.AnswerKey)
	resp := toSet(splitList(response))

	if setEqual(correct, resp) {
		res.AutoPoints = q.Points
		return res, nil
	}
	for r := range resp {
		if _, ok := correct[r]; !ok {
			return res, nil
		}
	}
	if s.allowPartial && len(correct) > 0 {
		res.AutoPoints = q.Points * (float64(len(resp)) / float64(len(correct)))
		res.Feedback = append(res.Feedback, fmt.Sprintf("partial: %d/%d", len(resp), len(correct)))
	}
	return res, nil
}

type freeTextStrategy struct{ maxEdit int }

func (s freeTextStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	switch matchFreeText(q.AnswerKey, response, s.maxEdit) {
	case exactMatch:
		res.AutoPoints = q.Points
	case nearMatch:
		res.AutoPoints = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

// matchingStrategy compares "left:right" pairs. The key lists one pair per
// entry.
type matchingStrategy struct{ allowPartial bool }

func (s matchingStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	want := pairs(q.AnswerKey)
	if len(want) == 0 {
		return res, nil
	}
	got := pairs(splitList(response))
	hits := 0
	for l, r := range got {
		if want[l] == r {
			hits++
		}
	}
	switch {
	case hits == len(want) && len(got) == len(want):
		res.AutoPoints = q.Points
	case s.allowPartial:
		res.AutoPoints = q.Points * float64(hits) / float64(len(want))
		res.Feedback = append(res.Feedback, fmt.Sprintf("pairs: %d/%d", hits, len(want)))
	}
	return res, nil
}

// helpers

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pairs(entries []string) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		l, r, ok := strings.Cut(e, ":")
		if !ok {
			continue
		}
		m[strings.TrimSpace(l)] = strings.TrimSpace(r)
	}
	return m
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
