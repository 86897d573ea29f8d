package session

import "go.uber.org/zap"

// ComputeStats partitions the question set into the four status buckets.
// A question counts as answered only when its status is answered and an
// answer is actually stored; otherwise an answered status counts as visited.
func ComputeStats(questions []Question, status map[string]Status, answers map[string]string, log *zap.Logger) Stats {
	var answered, visited, marked, notVisited int
	for _, q := range questions {
		switch status[q.ID] {
		case StatusMarkedForReview:
			marked++
		case StatusAnswered:
			if v, ok := answers[q.ID]; ok && v != "" {
				answered++
			} else {
				visited++
			}
		case StatusVisited:
			visited++
		default:
			notVisited++
		}
	}
	return reconcile(len(questions), answered, visited, marked, notVisited, log)
}

// reconcile enforces that the buckets partition total exactly. Overflow is
// taken from notVisited, then visited, then answered.
func reconcile(total, answered, visited, marked, notVisited int, log *zap.Logger) Stats {
	st := Stats{Total: total, Answered: answered, Visited: visited, MarkedForReview: marked, NotVisited: notVisited}
	sum := answered + visited + marked + notVisited
	if sum > total {
		if log != nil {
			log.Warn("status counts exceed question total; clamping",
				zap.Int("total", total), zap.Int("sum", sum),
				zap.Int("answered", answered), zap.Int("visited", visited),
				zap.Int("marked_for_review", marked), zap.Int("not_visited", notVisited))
		}
		over := sum - total
		for _, bucket := range []*int{&st.NotVisited, &st.Visited, &st.Answered, &st.MarkedForReview} {
			if over == 0 {
				break
			}
			cut := min(*bucket, over)
			*bucket -= cut
			over -= cut
		}
	} else if sum < total {
		st.NotVisited += total - sum
	}
	return st
}
