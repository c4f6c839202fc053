package graph

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexcabrera/kybflow/internal/schema"
)

// Graph is the mutable in-memory model behind the canvas. It keeps
// ProcessPayload.Inputs and DataPayload.Source consistent with the edge set
// when edges are removed. Dangling ids are tolerated everywhere: edges and
// references to missing nodes are accepted on write and skipped on read.
type Graph struct {
	Nodes []*Node
	Edges []Edge

	newEdgeID func() string
	now       func() time.Time
}

// Option configures a Graph.
type Option func(*Graph)

// WithEdgeIDs overrides edge id generation.
func WithEdgeIDs(fn func() string) Option {
	return func(g *Graph) { g.newEdgeID = fn }
}

// WithClock overrides the clock used for generated node ids.
func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

// New builds a graph over the given nodes and edges. The slices are used
// as-is; callers that need isolation should clone first.
func New(nodes []*Node, edges []Edge, opts ...Option) *Graph {
	g := &Graph{
		Nodes:     nodes,
		Edges:     edges,
		newEdgeID: func() string { return "edge-" + uuid.NewString() },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FromCanvas builds a graph over a deep copy of the canvas content.
func FromCanvas(c Canvas, opts ...Option) *Graph {
	cp := c.Clone()
	return New(cp.Nodes, cp.Edges, opts...)
}

// Canvas snapshots the graph into a canvas document with the given metadata.
func (g *Graph) Canvas(meta Metadata) Canvas {
	c := Canvas{Nodes: g.Nodes, Edges: g.Edges, Metadata: meta}
	return c.Clone()
}

// Node returns the node with id, or nil.
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (g *Graph) index() map[string]*Node {
	idx := make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := idx[n.ID]; !dup {
			idx[n.ID] = n
		}
	}
	return idx
}

// AddNode appends n. An empty id is generated as "<data|process>-<unix ms>",
// suffixed when already taken. Process list fields are defaulted to empty.
func (g *Graph) AddNode(n *Node) *Node {
	if n.ID == "" {
		prefix := "data"
		if n.Kind == KindProcess {
			prefix = "process"
		}
		base := fmt.Sprintf("%s-%d", prefix, g.now().UnixMilli())
		id := base
		for i := 1; g.Node(id) != nil; i++ {
			id = fmt.Sprintf("%s-%d", base, i)
		}
		n.ID = id
	}
	if n.Process != nil {
		if n.Process.Inputs == nil {
			n.Process.Inputs = []string{}
		}
		if n.Process.Platform == nil {
			n.Process.Platform = []string{}
		}
		if n.Process.Checks == nil {
			n.Process.Checks = []string{}
		}
	}
	g.Nodes = append(g.Nodes, n)
	return n
}

// UpdateNode applies fn to the node with id. It reports whether the node
// exists.
func (g *Graph) UpdateNode(id string, fn func(*Node)) bool {
	n := g.Node(id)
	if n == nil {
		return false
	}
	fn(n)
	return true
}

// RemoveNodes deletes the nodes and every edge touching them.
func (g *Graph) RemoveNodes(ids ...string) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if !drop[n.ID] {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	var incident []string
	for _, e := range g.Edges {
		if drop[e.Source] || drop[e.Target] {
			incident = append(incident, e.ID)
		}
	}
	g.RemoveEdges(incident...)
}

// HasEdge reports whether an edge source->target exists.
func (g *Graph) HasEdge(source, target string) bool {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}

// AddEdge connects source to target. It is a no-op returning the existing
// edge when the ordered pair is already connected. Unknown node ids are
// accepted and produce a dangling edge.
func (g *Graph) AddEdge(source, target string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return e, false
		}
	}
	e := Edge{ID: g.newEdgeID(), Source: source, Target: target}
	g.Edges = append(g.Edges, e)
	return e, true
}

// RemoveEdges deletes a batch of edges by id and unwinds the references each
// one implied: the source leaves a process target's inputs, and a data
// target whose source matches is cleared. Every lookup uses the edge list
// as it was before the batch. It returns the removed edges.
func (g *Graph) RemoveEdges(ids ...string) []Edge {
	if len(ids) == 0 {
		return nil
	}
	before := g.Edges
	byID := make(map[string]Edge, len(before))
	for _, e := range before {
		if _, dup := byID[e.ID]; !dup {
			byID[e.ID] = e
		}
	}

	drop := make(map[string]bool, len(ids))
	var removed []Edge
	for _, id := range ids {
		e, ok := byID[id]
		if !ok || drop[id] {
			continue
		}
		drop[id] = true
		removed = append(removed, e)
		g.unlink(e)
	}

	kept := make([]Edge, 0, len(before))
	for _, e := range before {
		if !drop[e.ID] {
			kept = append(kept, e)
		}
	}
	g.Edges = kept
	return removed
}

func (g *Graph) unlink(e Edge) {
	target := g.Node(e.Target)
	if target == nil {
		return
	}
	switch {
	case target.IsProcess():
		target.Process.RemoveInput(e.Source)
	case target.IsData():
		if target.Data.SourceID() == e.Source {
			target.Data.Source = nil
		}
	}
}

// Disconnect removes every edge from source to target without touching node
// payloads. It backs inspector toggles that have already updated the payload.
func (g *Graph) Disconnect(source, target string) int {
	kept := g.Edges[:0]
	n := 0
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			n++
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	return n
}

// ToggleInput adds dataID to the inputs of processID and connects the pair,
// or removes it and disconnects. It reports whether dataID is now an input.
func (g *Graph) ToggleInput(processID, dataID string) bool {
	p := g.Node(processID)
	if p == nil || !p.IsProcess() {
		return false
	}
	if p.Process.HasInput(dataID) {
		p.Process.RemoveInput(dataID)
		g.Disconnect(dataID, processID)
		return false
	}
	p.Process.Inputs = append(p.Process.Inputs, dataID)
	g.AddEdge(dataID, processID)
	return true
}

// SetSource points a data node at its producer and connects the pair. An
// empty source clears the reference and leaves edges alone. Raw inputs have
// no producer and are left untouched.
func (g *Graph) SetSource(dataID, source string) bool {
	d := g.Node(dataID)
	if d == nil || !d.IsData() || d.Data.Category == CategoryRaw {
		return false
	}
	if source == "" {
		d.Data.Source = nil
		return true
	}
	s := source
	d.Data.Source = &s
	g.AddEdge(source, dataID)
	return true
}

// SelectFields replaces the field selection a process keeps for one input.
func (g *Graph) SelectFields(processID, inputID, path string, on bool) bool {
	p := g.Node(processID)
	if p == nil || !p.IsProcess() {
		return false
	}
	if p.Process.SelectedFields == nil {
		p.Process.SelectedFields = make(map[string]schema.Selection)
	}
	sel := p.Process.SelectedFields[inputID]
	if sel == nil {
		sel = schema.Selection{}
		p.Process.SelectedFields[inputID] = sel
	}
	sel.Toggle(path, on)
	return true
}

// PruneFields drops selected fields that no longer resolve against their
// input's schema, along with unselected entries. Inputs without a schema
// are left alone. It returns the number of entries removed.
func (g *Graph) PruneFields() int {
	removed := 0
	for _, p := range g.Nodes {
		if !p.IsProcess() {
			continue
		}
		for id, sel := range p.Process.SelectedFields {
			in := g.Node(id)
			if in == nil || !in.IsData() || in.Data.Schema == nil {
				continue
			}
			removed += sel.Prune(in.Data.Schema)
			if len(sel) == 0 {
				delete(p.Process.SelectedFields, id)
			}
		}
	}
	return removed
}
