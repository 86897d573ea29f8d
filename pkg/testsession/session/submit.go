package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type SubmitState string

const (
	StateIdle       SubmitState = "idle"
	StateSubmitting SubmitState = "submitting"
	StateSubmitted  SubmitState = "submitted"
	StateFailed     SubmitState = "failed"
)

// Coordinator drives the terminal transition of an attempt. Concurrent
// Submit calls share one in-flight request and observe the same outcome.
type Coordinator struct {
	backend Backend
	sheet   *AnswerSheet
	clock   *Clock
	syncer  *Synchronizer
	cache   DraftCache
	log     *zap.Logger
	testID  string
	retry   RetryPolicy

	flight singleflight.Group

	mu          sync.Mutex
	state       SubmitState
	result      SubmitResult
	lastErr     error
	onSubmitted func()
}

func NewCoordinator(cfg Config, backend Backend, sheet *AnswerSheet, clock *Clock, syncer *Synchronizer, cache DraftCache, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		backend: backend,
		sheet:   sheet,
		clock:   clock,
		syncer:  syncer,
		cache:   cache,
		log:     log,
		testID:  cfg.TestID,
		retry:   cfg.SubmitRetry,
		state:   StateIdle,
	}
}

// OnSubmitted registers a hook run once after the attempt becomes submitted.
func (c *Coordinator) OnSubmitted(fn func()) {
	c.mu.Lock()
	c.onSubmitted = fn
	c.mu.Unlock()
}

func (c *Coordinator) State() SubmitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Result() SubmitResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Submit sends the attempt to the backend. Calling it after the attempt was
// submitted returns the cached result.
func (c *Coordinator) Submit(ctx context.Context, forced bool) (SubmitResult, error) {
	c.mu.Lock()
	if c.state == StateSubmitted {
		res := c.result
		c.mu.Unlock()
		c.log.Info("submit ignored; attempt already submitted", zap.String("test_id", c.testID))
		return res, nil
	}
	c.mu.Unlock()

	v, err, shared := c.flight.Do(c.testID, func() (any, error) {
		return c.run(ctx, forced)
	})
	if shared {
		c.log.Info("submit joined in-flight submission", zap.String("test_id", c.testID))
	}
	res, _ := v.(SubmitResult)
	return res, err
}

func (c *Coordinator) run(ctx context.Context, forced bool) (SubmitResult, error) {
	c.mu.Lock()
	if c.state == StateSubmitted {
		res := c.result
		c.mu.Unlock()
		return res, nil
	}
	c.state = StateSubmitting
	c.lastErr = nil
	known := c.result.AttemptID
	c.mu.Unlock()

	if c.syncer != nil {
		if err := c.syncer.Save(ctx); err != nil {
			c.log.Info("pre-submit save failed; submitting anyway", zap.String("test_id", c.testID))
		}
	}

	req := SubmitRequest{
		TestID:    c.testID,
		Answers:   c.sheet.Answers(),
		TimeLeft:  c.clock.Remaining(),
		AttemptID: c.cachedAttemptID(ctx, known),
	}

	var resp SubmitResponse
	err := c.retry.Do(ctx, c.log, "submit", func(ctx context.Context) error {
		var err error
		resp, err = c.backend.Submit(ctx, req)
		return err
	})

	switch {
	case err == nil:
		return c.succeed(ctx, SubmitResult{AttemptID: resp.AttemptID, Forced: forced}), nil
	case IsConflict(err):
		id := req.AttemptID
		var se *Error
		if errors.As(err, &se) && se.AttemptID != "" {
			id = se.AttemptID
		}
		c.log.Info("backend reports attempt already submitted", zap.String("test_id", c.testID), zap.String("attempt_id", id))
		return c.succeed(ctx, SubmitResult{AttemptID: id, Duplicate: true, Forced: forced}), nil
	case IsAuthRequired(err):
		return SubmitResult{}, c.fail(err, forced)
	default:
		if !IsTransient(err) {
			err = NewError(KindTransient, "submit", err)
		}
		return SubmitResult{}, c.fail(err, forced)
	}
}

func (c *Coordinator) cachedAttemptID(ctx context.Context, known string) string {
	if known != "" {
		return known
	}
	if c.cache == nil {
		return ""
	}
	id, ok, err := c.cache.LoadAttemptID(ctx, c.testID)
	if err != nil {
		c.log.Warn("read cached attempt id failed", zap.String("test_id", c.testID), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return id
}

func (c *Coordinator) succeed(ctx context.Context, res SubmitResult) SubmitResult {
	c.clock.Stop()

	c.mu.Lock()
	c.state = StateSubmitted
	c.result = res
	c.lastErr = nil
	hook := c.onSubmitted
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Clear(ctx, c.testID); err != nil {
			c.log.Warn("clear draft cache failed", zap.String("test_id", c.testID), zap.Error(err))
		}
	}
	c.log.Info("attempt submitted",
		zap.String("test_id", c.testID),
		zap.String("attempt_id", res.AttemptID),
		zap.Bool("duplicate", res.Duplicate),
		zap.Bool("forced", res.Forced))
	if hook != nil {
		hook()
	}
	return res
}

func (c *Coordinator) fail(err error, forced bool) error {
	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.mu.Unlock()
	c.log.Error("submit failed",
		zap.String("test_id", c.testID),
		zap.String("kind", KindOf(err).String()),
		zap.Bool("forced", forced),
		zap.Error(err))
	return err
}
