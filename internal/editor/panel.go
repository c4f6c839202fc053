package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPanelWidth is the inspector width when nothing is stored.
	DefaultPanelWidth = 320
	// MinPanelWidth is the narrowest the inspector may be.
	MinPanelWidth = 280
	// MaxPanelPercent caps the inspector at this share of the viewport.
	MaxPanelPercent = 50
)

// WidthStore persists the inspector width between sessions.
type WidthStore interface {
	LoadWidth() (width int, ok bool, err error)
	SaveWidth(width int) error
}

// ClampWidth bounds width to [MinPanelWidth, MaxPanelPercent% of viewport].
// The minimum wins when the viewport is too narrow for both.
func ClampWidth(width, viewport int) int {
	maxWidth := viewport * MaxPanelPercent / 100
	if width > maxWidth {
		width = maxWidth
	}
	if width < MinPanelWidth {
		width = MinPanelWidth
	}
	return width
}

// Panel tracks the inspector width.
type Panel struct {
	mu    sync.Mutex
	width int
	store WidthStore
}

// NewPanel loads the stored width, falling back to DefaultPanelWidth. A
// nil store keeps the width in memory only.
func NewPanel(store WidthStore) (*Panel, error) {
	p := &Panel{width: DefaultPanelWidth, store: store}
	if store == nil {
		return p, nil
	}
	w, ok, err := store.LoadWidth()
	if err != nil {
		return p, fmt.Errorf("load panel width: %w", err)
	}
	if ok && w > 0 {
		p.width = w
	}
	return p, nil
}

// Width returns the current width.
func (p *Panel) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width
}

// Resize sets the width, clamped for viewport, and stores it.
func (p *Panel) Resize(width, viewport int) (int, error) {
	return p.set(ClampWidth(width, viewport))
}

// Fit shrinks the width when the viewport no longer allows it.
func (p *Panel) Fit(viewport int) (int, error) {
	p.mu.Lock()
	cur := p.width
	p.mu.Unlock()
	if cur <= viewport*MaxPanelPercent/100 {
		return cur, nil
	}
	return p.set(ClampWidth(cur, viewport))
}

func (p *Panel) set(width int) (int, error) {
	p.mu.Lock()
	changed := p.width != width
	p.width = width
	p.mu.Unlock()
	if !changed || p.store == nil {
		return width, nil
	}
	if err := p.store.SaveWidth(width); err != nil {
		return width, fmt.Errorf("save panel width: %w", err)
	}
	return width, nil
}

// FileWidthStore keeps the width in a small YAML file.
type FileWidthStore struct {
	Path string
}

type panelState struct {
	InspectorWidth int `yaml:"inspector_width"`
}

// LoadWidth reads the stored width. A missing file is not an error.
func (s FileWidthStore) LoadWidth() (int, bool, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var st panelState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return st.InspectorWidth, st.InspectorWidth > 0, nil
}

// SaveWidth writes width, creating the parent directory.
func (s FileWidthStore) SaveWidth(width int) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(panelState{InspectorWidth: width})
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o644)
}
