package graph

import (
	"encoding/json"
	"fmt"
)

// Edge is a directed arc between two node ids. Fields the canvas attaches
// beyond id/source/target (handles, labels) are kept in Extra and written
// back unchanged.
type Edge struct {
	ID     string
	Source string
	Target string
	Extra  map[string]json.RawMessage
}

// MarshalJSON writes id, source, target and any extra fields.
func (e Edge) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extra)+3)
	for k, v := range e.Extra {
		out[k] = v
	}
	for k, v := range map[string]string{"id": e.ID, "source": e.Source, "target": e.Target} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = b
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads an edge, keeping unknown fields.
func (e *Edge) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = Edge{}
	for key, dst := range map[string]*string{"id": &e.ID, "source": &e.Source, "target": &e.Target} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("edge %s: %w", key, err)
		}
		delete(raw, key)
	}
	if len(raw) > 0 {
		e.Extra = raw
	}
	return nil
}

// Clone returns a copy with its own Extra map.
func (e Edge) Clone() Edge {
	if e.Extra != nil {
		extra := make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			extra[k] = append(json.RawMessage(nil), v...)
		}
		e.Extra = extra
	}
	return e
}

// Metadata is the free-form header of a canvas document. The store keeps
// totalNodes and totalEdges current.
type Metadata map[string]any

// Canvas is the persisted document of a workflow.
type Canvas struct {
	Nodes    []*Node  `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Clone deep-copies the canvas so a snapshot is unaffected by later edits.
func (c Canvas) Clone() Canvas {
	out := Canvas{
		Nodes: make([]*Node, len(c.Nodes)),
		Edges: make([]Edge, len(c.Edges)),
	}
	for i, n := range c.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range c.Edges {
		out.Edges[i] = e.Clone()
	}
	if c.Metadata != nil {
		out.Metadata = make(Metadata, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// MarshalJSON writes empty lists rather than null.
func (c Canvas) MarshalJSON() ([]byte, error) {
	type plain Canvas
	p := plain(c)
	if p.Nodes == nil {
		p.Nodes = []*Node{}
	}
	if p.Edges == nil {
		p.Edges = []Edge{}
	}
	return json.Marshal(p)
}
