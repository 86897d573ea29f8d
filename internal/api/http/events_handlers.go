package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	syncx "github.com/mind-engage/mindengage-testseries/internal/sync"
)

type eventOut struct {
	Offset    int64           `json:"offset"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt int64           `json:"createdAt"`
}

// GET /events?after=N&limit=M
func EventsHandler(events *syncx.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if events == nil {
			http.Error(w, "event log not available", http.StatusNotImplemented)
			return
		}
		q := r.URL.Query()
		after, err := intParam(q.Get("after"), 0)
		if err != nil || after < 0 {
			http.Error(w, "bad after", http.StatusBadRequest)
			return
		}
		limit, err := intParam(q.Get("limit"), 100)
		if err != nil || limit <= 0 || limit > 1000 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}

		list, err := events.Since(r.Context(), after, int(limit))
		if err != nil {
			log.Error("read events", zap.Int64("after", after), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]eventOut, 0, len(list))
		for _, e := range list {
			ev := eventOut{Offset: e.Offset, SiteID: e.SiteID, Type: e.Type, Key: e.Key, CreatedAt: e.CreatedAt}
			if json.Valid([]byte(e.DataJSON)) {
				ev.Data = json.RawMessage(e.DataJSON)
			}
			out = append(out, ev)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func intParam(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
