// Package graph holds the canvas model of a compliance workflow: data and
// process nodes joined by directed edges, plus the derived views the editor
// shows (layered layout and connected-component highlighting).
package graph

import (
	"encoding/json"
	"fmt"

	"github.com/alexcabrera/kybflow/internal/schema"
)

// Kind is the node type as stored on the canvas.
type Kind string

const (
	KindData    Kind = "dataNode"
	KindProcess Kind = "processNode"
)

// DataCategory places a data node in the flow.
type DataCategory string

const (
	CategoryRaw          DataCategory = "Raw"
	CategoryIntermediate DataCategory = "Intermediate"
	CategoryOutput       DataCategory = "Output"
)

// ValueType is the payload type of a data node.
type ValueType string

const (
	ValueJSON   ValueType = "JSON"
	ValueList   ValueType = "List"
	ValueNumber ValueType = "Number"
	ValueText   ValueType = "Text"
)

// ProcessCategory distinguishes top-level checks from reusable ones.
type ProcessCategory string

const (
	ProcessMain   ProcessCategory = "main-process"
	ProcessNested ProcessCategory = "nested-process"
)

// Position is the canvas coordinate of a node. It carries no invariant.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DataPayload describes a piece of data flowing through the workflow.
type DataPayload struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    DataCategory       `json:"type"`
	ValueType   ValueType          `json:"dataType"`
	Source      *string            `json:"source"`
	Schema      *schema.Descriptor `json:"schema,omitempty"`
}

// SourceID returns the producing node id, or "" when unset.
func (d *DataPayload) SourceID() string {
	if d == nil || d.Source == nil {
		return ""
	}
	return *d.Source
}

// ProcessPayload describes a check or transformation step.
type ProcessPayload struct {
	Name           string                      `json:"name"`
	Description    string                      `json:"description"`
	Category       ProcessCategory             `json:"processType"`
	Platform       []string                    `json:"platform"`
	Checks         []string                    `json:"checks"`
	Inputs         []string                    `json:"inputs"`
	SelectedFields map[string]schema.Selection `json:"selectedFields,omitempty"`
}

// HasInput reports whether id is listed in Inputs.
func (p *ProcessPayload) HasInput(id string) bool {
	for _, in := range p.Inputs {
		if in == id {
			return true
		}
	}
	return false
}

// RemoveInput drops every occurrence of id from Inputs.
func (p *ProcessPayload) RemoveInput(id string) {
	out := p.Inputs[:0]
	for _, in := range p.Inputs {
		if in != id {
			out = append(out, in)
		}
	}
	p.Inputs = out
}

// HasPlatform reports whether label is in the platform set.
func (p *ProcessPayload) HasPlatform(label string) bool {
	for _, l := range p.Platform {
		if l == label {
			return true
		}
	}
	return false
}

// TogglePlatform adds or removes label from the platform set.
func (p *ProcessPayload) TogglePlatform(label string) {
	if p.HasPlatform(label) {
		out := p.Platform[:0]
		for _, l := range p.Platform {
			if l != label {
				out = append(out, l)
			}
		}
		p.Platform = out
		return
	}
	p.Platform = append(p.Platform, label)
}

// Node is a canvas vertex. Exactly one of Data and Process is set,
// according to Kind.
type Node struct {
	ID       string
	Kind     Kind
	Position Position
	Data     *DataPayload
	Process  *ProcessPayload
}

// NewDataNode builds a data node.
func NewDataNode(id string, p DataPayload) *Node {
	return &Node{ID: id, Kind: KindData, Data: &p}
}

// NewProcessNode builds a process node with non-nil list fields.
func NewProcessNode(id string, p ProcessPayload) *Node {
	if p.Platform == nil {
		p.Platform = []string{}
	}
	if p.Checks == nil {
		p.Checks = []string{}
	}
	if p.Inputs == nil {
		p.Inputs = []string{}
	}
	return &Node{ID: id, Kind: KindProcess, Process: &p}
}

// Name returns the display name of the node.
func (n *Node) Name() string {
	switch {
	case n.Data != nil:
		return n.Data.Name
	case n.Process != nil:
		return n.Process.Name
	}
	return ""
}

// IsData reports whether n is a data node.
func (n *Node) IsData() bool { return n.Kind == KindData && n.Data != nil }

// IsProcess reports whether n is a process node.
func (n *Node) IsProcess() bool { return n.Kind == KindProcess && n.Process != nil }

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := &Node{ID: n.ID, Kind: n.Kind, Position: n.Position}
	if n.Data != nil {
		d := *n.Data
		if n.Data.Source != nil {
			s := *n.Data.Source
			d.Source = &s
		}
		d.Schema = n.Data.Schema.Clone()
		c.Data = &d
	}
	if n.Process != nil {
		p := *n.Process
		p.Platform = cloneStrings(n.Process.Platform)
		p.Checks = cloneStrings(n.Process.Checks)
		p.Inputs = cloneStrings(n.Process.Inputs)
		if n.Process.SelectedFields != nil {
			p.SelectedFields = make(map[string]schema.Selection, len(n.Process.SelectedFields))
			for k, v := range n.Process.SelectedFields {
				p.SelectedFields[k] = v.Clone()
			}
		}
		c.Process = &p
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     Kind            `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// MarshalJSON writes the canvas node shape.
func (n *Node) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch n.Kind {
	case KindData:
		data, err = json.Marshal(n.Data)
	case KindProcess:
		data, err = json.Marshal(n.Process)
	default:
		return nil, fmt.Errorf("node %s: unknown type %q", n.ID, n.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.ID, err)
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Kind, Position: n.Position, Data: data})
}

// UnmarshalJSON reads the canvas node shape.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*n = Node{ID: raw.ID, Kind: raw.Type, Position: raw.Position}
	data := raw.Data
	if len(data) == 0 || string(data) == "null" {
		data = []byte("{}")
	}
	switch raw.Type {
	case KindData:
		var p DataPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("node %s: %w", raw.ID, err)
		}
		if p.Source != nil && *p.Source == "" {
			p.Source = nil
		}
		n.Data = &p
	case KindProcess:
		var p ProcessPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("node %s: %w", raw.ID, err)
		}
		*n = *NewProcessNode(raw.ID, p)
		n.Position = raw.Position
	default:
		return fmt.Errorf("node %s: unknown type %q", raw.ID, raw.Type)
	}
	return nil
}
