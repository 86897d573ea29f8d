package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Confirmer gates manual submissions, e.g. a "you still have N unanswered
// questions" prompt. It is never consulted for forced submissions.
type Confirmer func(ctx context.Context, st Stats) bool

// Ticker is the part of time.Ticker the session loop needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func newStdTicker(d time.Duration) Ticker { return stdTicker{t: time.NewTicker(d)} }

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option    { return func(m *Manager) { m.log = l } }
func WithDraftCache(c DraftCache) Option { return func(m *Manager) { m.cache = c } }
func WithConfirmer(c Confirmer) Option   { return func(m *Manager) { m.confirm = c } }
func WithOnExpiredFailure(fn func(error)) Option {
	return func(m *Manager) { m.onExpiredFailure = fn }
}

// WithTicker replaces the ticker factory used for the one-second clock tick
// and the autosave interval.
func WithTicker(fn func(time.Duration) Ticker) Option { return func(m *Manager) { m.newTicker = fn } }

// Manager owns one in-progress attempt: navigation, answers, the countdown,
// periodic persistence and submission.
type Manager struct {
	cfg              Config
	log              *zap.Logger
	cache            DraftCache
	confirm          Confirmer
	onExpiredFailure func(error)
	newTicker        func(time.Duration) Ticker

	sheet  *AnswerSheet
	clock  *Clock
	syncer *Synchronizer
	coord  *Coordinator

	mu         sync.Mutex
	index      int
	starting   bool
	started    bool
	disposed   bool
	baseCtx    context.Context
	cancel     context.CancelFunc
	loopDone   chan struct{}
	expiryDone chan struct{}

	saving      sync.Mutex
	bg          sync.WaitGroup
	disposeOnce sync.Once
}

func New(cfg Config, backend Backend, opts ...Option) *Manager {
	m := &Manager{cfg: cfg, newTicker: newStdTicker}
	for _, o := range opts {
		o(m)
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.With(zap.String("test_id", cfg.TestID))
	if m.cache == nil {
		m.cache = NewMemoryDraftCache()
	}
	if m.cfg.AutosaveInterval <= 0 {
		m.cfg.AutosaveInterval = 30 * time.Second
	}

	m.sheet = NewAnswerSheet(m.log)
	m.clock = NewClock(m.handleExpiry)
	m.syncer = NewSynchronizer(m.cfg, backend, m.sheet, m.clock, m.cache, m.log)
	m.coord = NewCoordinator(m.cfg, backend, m.sheet, m.clock, m.syncer, m.cache, m.log)
	m.coord.OnSubmitted(m.stopTimers)
	return m
}

// Start restores the attempt and starts the clock and autosave loop. Calls
// made while another Start is running or after one succeeded do nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.starting || m.started || m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.starting = true
	m.mu.Unlock()

	applied, err := m.syncer.Restore(ctx)
	if err != nil {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
		m.log.Error("restore attempt failed", zap.String("kind", KindOf(err).String()), zap.Error(err))
		return err
	}
	m.log.Info("attempt restored",
		zap.Int("questions", m.sheet.Len()),
		zap.Int("time_left", m.clock.Remaining()),
		zap.Bool("resumed_time", applied))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.starting = false
	if m.disposed || m.started {
		return nil
	}
	m.baseCtx = context.WithoutCancel(ctx)
	loopCtx, cancel := context.WithCancel(m.baseCtx)
	m.cancel = cancel
	m.loopDone = make(chan struct{})
	m.started = true
	m.index = 0
	if qs := m.sheet.Questions(); len(qs) > 0 {
		m.sheet.Visit(qs[0].ID)
	}
	go m.loop(loopCtx, m.loopDone)
	return nil
}

func (m *Manager) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	sec := m.newTicker(time.Second)
	defer sec.Stop()
	autosave := m.newTicker(m.cfg.AutosaveInterval)
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sec.C():
			if m.clock.Tick() {
				m.saveAsync(ctx, false)
			}
		case <-autosave.C():
			m.saveAsync(ctx, true)
		}
	}
}

// saveAsync runs a save off the loop goroutine. A save already in flight
// wins; the skipped one is covered by the next schedule.
func (m *Manager) saveAsync(ctx context.Context, onlyIfAnswered bool) {
	if !m.saving.TryLock() {
		return
	}
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		defer m.saving.Unlock()
		if onlyIfAnswered {
			m.syncer.SaveIfAnswered(ctx)
			return
		}
		_ = m.syncer.Save(ctx)
	}()
}

func (m *Manager) handleExpiry() {
	m.mu.Lock()
	if m.disposed || m.expiryDone != nil {
		m.mu.Unlock()
		return
	}
	done := make(chan struct{})
	m.expiryDone = done
	ctx := m.baseCtx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	m.log.Info("time expired; submitting attempt")
	go func() {
		defer close(done)
		if _, err := m.coord.Submit(ctx, true); err != nil {
			m.log.Error("forced submission failed; manual retry required", zap.Error(err))
			if m.onExpiredFailure != nil {
				m.onExpiredFailure(err)
			}
		}
	}()
}

func (m *Manager) stopTimers() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) active() error {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	if m.coord.State() == StateSubmitted {
		return ErrAttemptClosed
	}
	return nil
}

func (m *Manager) SetAnswer(questionID string, raw any) error {
	if err := m.active(); err != nil {
		return err
	}
	m.sheet.SetAnswer(questionID, raw)
	return nil
}

func (m *Manager) ClearAnswer(questionID string) error {
	return m.SetAnswer(questionID, nil)
}

func (m *Manager) MarkForReview(questionID string) error {
	if err := m.active(); err != nil {
		return err
	}
	m.sheet.MarkForReview(questionID)
	return nil
}

func (m *Manager) UnmarkReview(questionID string) error {
	if err := m.active(); err != nil {
		return err
	}
	m.sheet.UnmarkReview(questionID)
	return nil
}

// Next, Previous and the Jump variants move the cursor and visit the target.
// Out-of-range moves are no-ops and report false.
func (m *Manager) Next() bool {
	m.mu.Lock()
	i := m.index + 1
	m.mu.Unlock()
	return m.Jump(i)
}

func (m *Manager) Previous() bool {
	m.mu.Lock()
	i := m.index - 1
	m.mu.Unlock()
	return m.Jump(i)
}

func (m *Manager) Jump(index int) bool {
	qs := m.sheet.Questions()
	if index < 0 || index >= len(qs) {
		return false
	}
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return false
	}
	m.index = index
	m.mu.Unlock()
	if m.coord.State() != StateSubmitted {
		m.sheet.Visit(qs[index].ID)
	}
	return true
}

func (m *Manager) JumpTo(questionID string) bool {
	for i, q := range m.sheet.Questions() {
		if q.ID == questionID {
			return m.Jump(i)
		}
	}
	return false
}

func (m *Manager) JumpToSection(sectionID string) bool {
	for i, q := range m.sheet.Questions() {
		if q.SectionID == sectionID {
			return m.Jump(i)
		}
	}
	return false
}

// Submit is the manual submission path. It consults the confirmer unless
// the clock already expired.
func (m *Manager) Submit(ctx context.Context) (SubmitResult, error) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return SubmitResult{}, ErrNotStarted
	}
	if m.coord.State() == StateSubmitted {
		return m.coord.Result(), nil
	}
	forced := m.clock.Expired()
	if !forced && m.confirm != nil && !m.confirm(ctx, m.sheet.Stats()) {
		m.log.Info("manual submission declined")
		return SubmitResult{}, ErrSubmitCancelled
	}
	return m.coord.Submit(ctx, forced)
}

func (m *Manager) Stats() Stats { return m.sheet.Stats() }

func (m *Manager) State() SubmitState { return m.coord.State() }

func (m *Manager) TimeLeft() int { return m.clock.Remaining() }

// View builds the read model for the presentation layer.
func (m *Manager) View() View {
	m.mu.Lock()
	idx := m.index
	m.mu.Unlock()

	test := m.syncer.Test()
	v := View{
		TestID:       m.cfg.TestID,
		Title:        test.Title,
		DurationSecs: test.DurationSeconds,
		Index:        idx,
		TimeLeft:     m.clock.Remaining(),
		Stats:        m.sheet.Stats(),
		State:        m.coord.State(),
		AttemptID:    m.coord.Result().AttemptID,
		SubmitError:  m.coord.LastError(),
		Palette:      m.sheet.Palette(),
	}
	if qs := m.sheet.Questions(); idx >= 0 && idx < len(qs) {
		v.Question = qs[idx]
		v.Status = m.sheet.Status(qs[idx].ID)
		v.Answer, v.HasAnswer = m.sheet.Answer(qs[idx].ID)
	}
	return v
}

// Dispose stops every timer, waits for the loop to exit and makes one
// bounded best-effort save. It is safe to call more than once.
func (m *Manager) Dispose(ctx context.Context) {
	m.disposeOnce.Do(func() {
		m.mu.Lock()
		m.disposed = true
		cancel, loopDone := m.cancel, m.loopDone
		expiryDone := m.expiryDone
		started := m.started
		m.mu.Unlock()

		if cancel != nil {
			cancel()
			<-loopDone
		}
		m.bg.Wait()
		m.clock.Stop()

		timeout := m.cfg.TeardownTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		if expiryDone != nil {
			select {
			case <-expiryDone:
			case <-time.After(timeout):
				m.log.Warn("teardown did not wait for forced submission to finish")
			}
		}

		if !started {
			return
		}
		switch m.coord.State() {
		case StateSubmitted, StateSubmitting:
			return
		}
		saveCtx, cancelSave := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancelSave()
		if err := m.syncer.Save(saveCtx); err != nil {
			m.log.Info("final save on teardown failed", zap.Error(err))
		}
	})
}
