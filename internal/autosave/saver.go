// Package autosave debounces canvas edits into infrequent versioned writes.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

// DefaultDelay is how long input must stop before a scheduled write fires.
const DefaultDelay = 2 * time.Second

// Updater writes a workflow update. Both the HTTP client and the store
// satisfy it.
type Updater interface {
	Update(ctx context.Context, id string, p workflow.UpdateParams) (workflow.Workflow, error)
}

// Config configures a Saver.
type Config struct {
	Delay   time.Duration           // Debounce delay (default: 2s)
	Timeout time.Duration           // Per-write timeout (default: 30s)
	OnSaved func(workflow.Workflow) // Called after a scheduled write succeeds
	OnError func(error)             // Called after a scheduled write fails
}

// Saver debounces Schedule calls for one workflow. It never retries: a
// failed write is reported through OnError and the caller decides what to
// do next. Callbacks run on the timer goroutine.
type Saver struct {
	updater    Updater
	workflowID string
	delay      time.Duration
	timeout    time.Duration
	onSaved    func(workflow.Workflow)
	onError    func(error)

	mu     sync.Mutex
	active bool
	timer  *time.Timer
	gen    uint64
	wg     sync.WaitGroup
}

// New creates a stopped saver for workflowID.
func New(updater Updater, workflowID string, cfg Config) *Saver {
	delay := cfg.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Saver{
		updater:    updater,
		workflowID: workflowID,
		delay:      delay,
		timeout:    timeout,
		onSaved:    cfg.OnSaved,
		onError:    cfg.OnError,
	}
}

// Start makes the saver accept scheduled writes.
func (s *Saver) Start() {
	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

// Stop deactivates the saver and drops any pending write. Writes already
// in flight are not cancelled; Stop waits up to timeout for them.
func (s *Saver) Stop(timeout time.Duration) {
	s.mu.Lock()
	s.active = false
	s.cancelLocked()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// Active reports whether the saver accepts scheduled writes.
func (s *Saver) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending reports whether a scheduled write is waiting to fire.
func (s *Saver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Schedule arms a write of canvas at knownVersion, replacing any pending
// one. The write fires once no further Schedule call arrives for the
// configured delay. It reports false and does nothing while stopped.
func (s *Saver) Schedule(canvas graph.Canvas, knownVersion int) bool {
	snapshot := canvas.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.cancelLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen, snapshot, knownVersion) })
	return true
}

// Cancel drops the pending write, if any.
func (s *Saver) Cancel() {
	s.mu.Lock()
	s.cancelLocked()
	s.mu.Unlock()
}

// SaveNow drops the pending write and writes canvas immediately. The result
// is returned to the caller; callbacks are not invoked.
func (s *Saver) SaveNow(ctx context.Context, canvas graph.Canvas, knownVersion int) (workflow.Workflow, error) {
	s.Cancel()
	return s.write(ctx, canvas, knownVersion)
}

func (s *Saver) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Saver) fire(gen uint64, canvas graph.Canvas, knownVersion int) {
	s.mu.Lock()
	if gen != s.gen || !s.active {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	wf, err := s.write(ctx, canvas, knownVersion)
	if err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		return
	}
	if s.onSaved != nil {
		s.onSaved(wf)
	}
}

func (s *Saver) write(ctx context.Context, canvas graph.Canvas, knownVersion int) (workflow.Workflow, error) {
	v := knownVersion
	return s.updater.Update(ctx, s.workflowID, workflow.UpdateParams{Canvas: &canvas, Version: &v})
}
