// Package editor is the headless state behind the canvas screen: the graph
// being edited, the current selection and its highlight, the version the
// session last saw from the server, and auto-save.
package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexcabrera/kybflow/internal/autosave"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

// Remote is the persistence surface a session writes through.
type Remote interface {
	autosave.Updater
	UpdateWithRetry(ctx context.Context, id string, p workflow.UpdateParams, refresh func(latest workflow.Workflow) workflow.UpdateParams) (workflow.Workflow, error)
}

// SaveState is the save indicator shown to the user.
type SaveState string

const (
	StateIdle    SaveState = "idle"
	StatePending SaveState = "pending"
	StateSaved   SaveState = "saved"
	StateError   SaveState = "error"
)

// Status is a snapshot of the save indicator.
type Status struct {
	State   SaveState
	Version int
	SavedAt time.Time
	Err     error
}

// Session edits one workflow.
type Session struct {
	id     string
	remote Remote
	saver  *autosave.Saver
	panel  *Panel
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	graph     *graph.Graph
	meta      graph.Metadata
	selected  string
	highlight graph.Highlight
	status    Status
}

// Option configures a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	delay  time.Duration
	widths WidthStore
	logger *slog.Logger
	now    func() time.Time
	graph  []graph.Option
}

// WithAutosaveDelay overrides the debounce delay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(c *sessionConfig) { c.delay = d }
}

// WithWidthStore sets where the inspector width is kept.
func WithWidthStore(s WidthStore) Option {
	return func(c *sessionConfig) { c.widths = s }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *sessionConfig) { c.logger = l }
}

// WithClock overrides the clock used for save timestamps and node ids.
func WithClock(now func() time.Time) Option {
	return func(c *sessionConfig) {
		c.now = now
		c.graph = append(c.graph, graph.WithClock(now))
	}
}

// WithGraphOptions passes options through to the graph.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(c *sessionConfig) { c.graph = append(c.graph, opts...) }
}

// Open starts a session on wf. Auto-save is active until Close.
func Open(wf workflow.Workflow, remote Remote, opts ...Option) (*Session, error) {
	cfg := sessionConfig{logger: slog.New(slog.DiscardHandler), now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	panel, err := NewPanel(cfg.widths)
	if err != nil {
		cfg.logger.Warn("using default panel width", "error", err)
	}

	s := &Session{
		id:     wf.ID,
		remote: remote,
		panel:  panel,
		logger: cfg.logger,
		now:    cfg.now,
		graph:  graph.FromCanvas(wf.Canvas, cfg.graph...),
		meta:   wf.Canvas.Metadata,
		status: Status{State: StateIdle, Version: wf.Version},
	}
	s.saver = autosave.New(remote, wf.ID, autosave.Config{
		Delay:   cfg.delay,
		OnSaved: s.saved,
		OnError: s.failed,
	})
	s.saver.Start()
	return s, nil
}

// Close stops auto-save. A pending write is dropped.
func (s *Session) Close() {
	s.saver.Stop(5 * time.Second)
}

// Panel returns the inspector panel.
func (s *Session) Panel() *Panel { return s.panel }

// Status returns the save indicator.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Version is the last version the session saw from the server.
func (s *Session) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Version
}

// Canvas returns a snapshot of the edited canvas.
func (s *Session) Canvas() graph.Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Canvas(s.meta)
}

// View runs fn with the graph under the session lock. fn must not modify it.
func (s *Session) View(fn func(g *graph.Graph)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.graph)
}

// Mutate applies fn to the graph and schedules an auto-save. The selection
// is dropped when its node no longer exists.
func (s *Session) Mutate(fn func(g *graph.Graph)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.graph)
	if s.selected != "" && s.graph.Node(s.selected) == nil {
		s.selected = ""
	}
	s.highlight = s.graph.Highlight(s.selected)
	s.scheduleLocked()
}

// AutoFormat lays the graph out, clears the selection, and schedules an
// auto-save.
func (s *Session) AutoFormat() graph.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.graph.AutoLayout()
	s.selected = ""
	s.highlight = graph.Highlight{}
	s.scheduleLocked()
	return l
}

// Select makes id the selected node and highlights everything connected to
// it. An empty id clears the selection.
func (s *Session) Select(id string) graph.Highlight {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && s.graph.Node(id) == nil {
		id = ""
	}
	s.selected = id
	s.highlight = s.graph.Highlight(id)
	return s.highlight
}

// Selected returns the selected node id and its highlight.
func (s *Session) Selected() (string, graph.Highlight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.highlight
}

// Save writes the canvas now, bypassing the debounce. On a version
// conflict the latest server version is fetched and this session's canvas
// is written over it, up to the client's retry budget.
func (s *Session) Save(ctx context.Context) (workflow.Workflow, error) {
	s.saver.Cancel()

	s.mu.Lock()
	canvas := s.graph.Canvas(s.meta)
	version := s.status.Version
	s.status.State = StatePending
	s.status.Err = nil
	s.mu.Unlock()

	refresh := func(latest workflow.Workflow) workflow.UpdateParams {
		s.logger.Info("save conflicted, retrying",
			"workflow", s.id, "known", version, "latest", latest.Version)
		return workflow.UpdateParams{Canvas: &canvas}
	}
	wf, err := s.remote.UpdateWithRetry(ctx, s.id, workflow.UpdateParams{Canvas: &canvas, Version: &version}, refresh)
	if err != nil {
		s.failed(err)
		return workflow.Workflow{}, fmt.Errorf("save workflow %s: %w", s.id, err)
	}
	s.saved(wf)
	return wf, nil
}

func (s *Session) scheduleLocked() {
	if s.saver.Schedule(s.graph.Canvas(s.meta), s.status.Version) {
		s.status.State = StatePending
		s.status.Err = nil
	}
}

func (s *Session) saved(wf workflow.Workflow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if wf.Version > s.status.Version {
		s.status.Version = wf.Version
	}
	s.status.SavedAt = s.now()
	s.status.Err = nil
	if s.saver.Pending() {
		s.status.State = StatePending
	} else {
		s.status.State = StateSaved
	}
	s.logger.Debug("workflow saved", "workflow", s.id, "version", wf.Version)
}

func (s *Session) failed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = StateError
	s.status.Err = err
	s.logger.Warn("workflow save failed", "workflow", s.id, "error", err)
}
