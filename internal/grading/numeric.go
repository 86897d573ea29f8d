package grading

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// numericStrategy grades integer answers: exact match first, then numeric
// comparison with an optional tolerance entry after the target.
//
//	AnswerKey: ["42"]
//	AnswerKey: ["100", "tol=1"]        // absolute tolerance
//	AnswerKey: ["100", "reltol=0.05"]  // 5% relative tolerance
type numericStrategy struct{}

func (numericStrategy) Grade(_ context.Context, q Q, response string) (Result, error) {
	res := Result{MaxPoints: q.Points}
	str := strings.TrimSpace(response)
	if len(q.AnswerKey) == 0 {
		return res, nil
	}
	target := q.AnswerKey[0]

	if str == target {
		res.AutoPoints = q.Points
		return res, nil
	}

	rv, rOK := parseNumber(str)
	tv, tOK := parseNumber(target)
	if !rOK || !tOK {
		return res, nil
	}

	absTol, relTol := parseTolerances(q.AnswerKey[1:])
	diff := math.Abs(rv - tv)
	pass := diff == 0
	if absTol >= 0 && diff <= absTol {
		pass = true
	}
	if !pass && relTol >= 0 && (diff <= relTol*math.Abs(tv)) {
		pass = true
	}
	if pass {
		res.AutoPoints = q.Points
	}
	return res, nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	return 0, false
}

func parseTolerances(keys []string) (absTol float64, relTol float64) {
	absTol, relTol = -1, -1
	for _, k := range keys {
		k = strings.TrimSpace(strings.ToLower(k))
		if strings.HasPrefix(k, "tol=") {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "tol="), 64); err == nil {
				absTol = v
			}
		}
		if strings.HasPrefix(k, "reltol=") {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(k, "reltol="), 64); err == nil {
				relTol = v
			}
		}
	}
	return
}
