package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-testseries/internal/exam"
)

// GET /tests
func ListTestsHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListTests(r.Context())
		if err != nil {
			writeStoreError(w, log, "list tests", err)
			return
		}
		if list == nil {
			list = []exam.TestSummary{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /tests/{testId}
func GetTestHandler(store exam.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetTest(r.Context(), chi.URLParam(r, "testId"))
		if err != nil {
			writeStoreError(w, log, "get test", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}
