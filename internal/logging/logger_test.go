package logging

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()
	log, level, err := New(Options{Level: "info", Directory: dir, MaxSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	log.Debug("hidden")
	log.Warn("careful")
	_ = log.Sync()

	if b, _ := os.ReadFile(filepath.Join(dir, "testseries-warn.log")); len(b) == 0 {
		t.Fatalf("warn file empty")
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "testseries-debug.log")); len(b) != 0 {
		t.Fatalf("debug written below level: %s", b)
	}

	level.SetLevel(zapcore.DebugLevel)
	log.Debug("now visible")
	_ = log.Sync()
	if b, _ := os.ReadFile(filepath.Join(dir, "testseries-debug.log")); len(b) == 0 {
		t.Fatalf("level change not applied")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	for _, p := range []string{"/ok", "/missing", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("entries=%d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("%d: level=%s want %s", i, e.Level, want[i])
		}
	}
}
