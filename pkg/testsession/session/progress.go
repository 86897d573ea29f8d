package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Synchronizer persists the sheet and clock to the backend and restores
// them once at attempt start.
type Synchronizer struct {
	backend Backend
	sheet   *AnswerSheet
	clock   *Clock
	cache   DraftCache
	log     *zap.Logger

	testID        string
	userID        string
	testRetry     RetryPolicy
	progressRetry RetryPolicy

	// restoreMu admits one restore at a time for this attempt only.
	restoreMu sync.Mutex

	mu   sync.Mutex
	test Test
}

func NewSynchronizer(cfg Config, backend Backend, sheet *AnswerSheet, clock *Clock, cache DraftCache, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{
		backend:       backend,
		sheet:         sheet,
		clock:         clock,
		cache:         cache,
		log:           log,
		testID:        cfg.TestID,
		userID:        cfg.UserID,
		testRetry:     cfg.FetchTestRetry,
		progressRetry: cfg.FetchProgressRetry,
	}
}

// Test returns the static test data loaded by the last Restore.
func (s *Synchronizer) Test() Test {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.test
}

// Restore loads the question set, then overlays the remote snapshot if one
// exists. It reports whether the snapshot's remaining time was applied.
// A second caller while a restore is running gets ErrRestoreInProgress.
func (s *Synchronizer) Restore(ctx context.Context) (bool, error) {
	if !s.restoreMu.TryLock() {
		s.log.Info("restore skipped; another restore is running", zap.String("test_id", s.testID))
		return false, ErrRestoreInProgress
	}
	defer s.restoreMu.Unlock()

	var test Test
	err := s.testRetry.Do(ctx, s.log, "fetch test", func(ctx context.Context) error {
		var err error
		test, err = s.backend.FetchTest(ctx, s.testID)
		return err
	})
	if err != nil {
		return false, err
	}
	// a zero-length test could never expire and so never submit
	if test.DurationSeconds <= 0 {
		return false, NewError(KindInvalid, "fetch test",
			fmt.Errorf("test %q has non-positive duration %d", s.testID, test.DurationSeconds))
	}
	s.mu.Lock()
	s.test = test
	s.mu.Unlock()
	s.sheet.Load(test.Questions)

	var snap Snapshot
	err = s.progressRetry.Do(ctx, s.log, "fetch progress", func(ctx context.Context) error {
		var err error
		snap, err = s.backend.FetchProgress(ctx, s.testID, s.userID)
		return err
	})
	if IsNotFound(err) {
		s.log.Debug("no saved progress; starting fresh", zap.String("test_id", s.testID))
		s.clock.SetRemaining(test.DurationSeconds)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.apply(snap)

	if snap.TimeLeft > 0 && snap.TimeLeft <= test.DurationSeconds {
		s.clock.SetRemaining(snap.TimeLeft)
		return true, nil
	}
	s.log.Warn("saved time left out of range; using full duration",
		zap.String("test_id", s.testID),
		zap.Int("time_left", snap.TimeLeft),
		zap.Int("duration_seconds", test.DurationSeconds))
	s.clock.SetRemaining(test.DurationSeconds)
	return false, nil
}

// apply overlays a snapshot onto the freshly loaded sheet: answers first,
// then review marks, then visits.
func (s *Synchronizer) apply(snap Snapshot) {
	dropped := 0
	for id, v := range snap.Answers {
		if !s.sheet.Has(id) {
			dropped++
			continue
		}
		s.sheet.SetAnswer(id, v)
	}
	for _, id := range snap.MarkedForReview {
		if !s.sheet.MarkForReview(id) {
			dropped++
		}
	}
	for _, id := range snap.Visited {
		if !s.sheet.Visit(id) {
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Info("dropped snapshot entries for questions not in this test",
			zap.String("test_id", s.testID), zap.Int("dropped", dropped))
	}
}

// Save pushes the current snapshot. Failures are logged and returned; the
// scheduled callers ignore the error and let the next save try again.
func (s *Synchronizer) Save(ctx context.Context) error {
	snap := s.sheet.Snapshot(s.clock.Remaining())
	ack, err := s.backend.SaveProgress(ctx, s.testID, snap)
	if err != nil {
		s.log.Warn("save progress failed",
			zap.String("test_id", s.testID),
			zap.String("kind", KindOf(err).String()),
			zap.Error(err))
		return err
	}
	if ack.AttemptID != "" && s.cache != nil {
		if err := s.cache.StoreAttemptID(ctx, s.testID, ack.AttemptID); err != nil {
			s.log.Warn("cache attempt id failed", zap.String("test_id", s.testID), zap.Error(err))
		}
	}
	s.log.Debug("progress saved",
		zap.String("test_id", s.testID),
		zap.Int("answers", len(snap.Answers)),
		zap.Int("time_left", snap.TimeLeft))
	return nil
}

// SaveIfAnswered is the interval save: it only runs while answers exist.
func (s *Synchronizer) SaveIfAnswered(ctx context.Context) {
	if !s.sheet.HasAnswers() {
		return
	}
	_ = s.Save(ctx)
}
