package exam

import (
	"context"

	"github.com/mind-engage/mindengage-testseries/internal/grading"
)

// score grades answers against the full test (with keys). Questions that
// are unanswered or fail to grade earn nothing.
func score(ctx context.Context, g grading.Grader, t Test, answers map[string]string) (got, max float64) {
	for _, q := range t.Questions {
		pts := q.Points
		if pts == 0 {
			pts = 1
		}
		max += pts
		resp, ok := answers[q.ID]
		if !ok || resp == "" {
			continue
		}
		res, err := g.Grade(ctx, grading.Q{Type: q.Type, Points: pts, AnswerKey: q.AnswerKey}, resp)
		if err != nil {
			continue
		}
		got += res.AutoPoints
	}
	return got, max
}

// filterAnswers drops answers for ids that are not part of t.
func filterAnswers(t Test, answers map[string]string) map[string]string {
	valid := make(map[string]struct{}, len(t.Questions))
	for _, q := range t.Questions {
		valid[q.ID] = struct{}{}
	}
	out := make(map[string]string, len(answers))
	for id, v := range answers {
		if _, ok := valid[id]; ok && v != "" {
			out[id] = v
		}
	}
	return out
}
