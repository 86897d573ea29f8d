package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-testseries/internal/auth/middleware"
	"github.com/mind-engage/mindengage-testseries/internal/exam"
	"github.com/mind-engage/mindengage-testseries/internal/rbac"
)

// GET /tests/{testId}/progress/{userId}
func GetProgressHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.GetProgress(r.Context(), chi.URLParam(r, "testId"), chi.URLParam(r, "userId"))
		if err != nil {
			writeStoreError(w, log, "get progress", err)
			return
		}
		if p.Answers == nil {
			p.Answers = map[string]string{}
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// POST /tests/{testId}/save-progress
func SaveProgressHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p exam.Progress
		if err := decodeBody(w, r, &p); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		testID := chi.URLParam(r, "testId")
		a, err := store.SaveProgress(r.Context(), testID, auth.SubjectFromContext(r.Context()), p)
		if err != nil {
			writeStoreError(w, log, "save progress", err)
			return
		}
		log.Debug("progress saved",
			zap.String("test_id", testID), zap.String("attempt_id", a.ID),
			zap.Int("answers", len(p.Answers)), zap.Int("time_left", p.TimeLeft))
		writeJSON(w, http.StatusOK, map[string]string{"attemptId": a.ID})
	}
}

type attemptRef struct {
	ID       string  `json:"id"`
	Status   string  `json:"status,omitempty"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
}

func refOf(a exam.Attempt) attemptRef {
	return attemptRef{ID: a.ID, Status: a.Status, Score: a.Score, MaxScore: a.MaxScore}
}

// POST /tests/{testId}/submit
func SubmitHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID := chi.URLParam(r, "testId")
		var in exam.SubmitInput
		in.TestID = testID
		if err := decodeBody(w, r, &in); err != nil {
			http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
			return
		}
		if in.TestID != testID {
			http.Error(w, "testId does not match path", http.StatusBadRequest)
			return
		}
		in.UserID = auth.SubjectFromContext(r.Context())

		a, err := store.Submit(r.Context(), in)
		switch {
		case err == nil:
			log.Info("attempt submitted",
				zap.String("test_id", testID), zap.String("attempt_id", a.ID),
				zap.Float64("score", a.Score), zap.Int("time_left", in.TimeLeft))
			writeJSON(w, http.StatusOK, map[string]any{"attempt": refOf(a)})
		case errors.Is(err, exam.ErrAlreadySubmitted) && a.ID != "":
			// already submitted: tell the client which attempt holds the result
			writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "attempt": refOf(a)})
		default:
			writeStoreError(w, log, "submit", err)
		}
	}
}

// GET /attempts/{attemptId}
func GetAttemptHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptId"))
		if err != nil {
			writeStoreError(w, log, "get attempt", err)
			return
		}
		if !rbac.CanAccess(r.Context(), a.UserID, rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
