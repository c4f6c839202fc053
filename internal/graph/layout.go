package graph

import "sort"

// Grid geometry used by AutoLayout.
const (
	LayoutOriginX   = 50
	LayoutOriginY   = 50
	LayoutColumnGap = 350
	LayoutNodeH     = 120
	LayoutRowGap    = 20
)

// cycleLayer is returned when dependency resolution revisits a node that is
// already on the current path.
const cycleLayer = 2

// Layout is the result of a layering pass.
type Layout struct {
	// Layers maps every node id to its layer index.
	Layers map[string]int `json:"layers"`
	// Columns lists node ids per layer, top to bottom. Layers that hold no
	// node are present and empty.
	Columns [][]string `json:"columns"`
}

// Layer returns the layer of id and whether it was placed.
func (l Layout) Layer(id string) (int, bool) {
	i, ok := l.Layers[id]
	return i, ok
}

// Plan computes layers and in-column order without touching positions.
//
// Raw data nodes sit in layer 0 and nested processes in layer 1. Every
// other node lands one past the deepest of its dependencies: process inputs,
// a data node's source, and the source of any edge into it. Output data
// nodes are then moved together into the column after the deepest
// non-output node. Within a column data nodes come before processes, then
// names sort case-sensitively, then ids.
func (g *Graph) Plan() Layout {
	idx := g.index()

	incoming := make(map[string][]string)
	for _, e := range g.Edges {
		incoming[e.Target] = append(incoming[e.Target], e.Source)
	}

	r := &layering{
		idx:      idx,
		incoming: incoming,
		memo:     make(map[string]int, len(idx)),
		onPath:   make(map[string]bool),
	}

	layers := make(map[string]int, len(idx))
	maxLayer := -1
	var outputs []string
	for _, n := range g.Nodes {
		if _, seen := layers[n.ID]; seen {
			continue
		}
		if isOutput(n) {
			outputs = append(outputs, n.ID)
			layers[n.ID] = 0
			continue
		}
		l, _ := r.layer(n.ID)
		layers[n.ID] = l
		if l > maxLayer {
			maxLayer = l
		}
	}
	for _, id := range outputs {
		layers[id] = maxLayer + 1
	}

	top := -1
	for _, l := range layers {
		if l > top {
			top = l
		}
	}
	columns := make([][]string, top+1)
	for id, l := range layers {
		columns[l] = append(columns[l], id)
	}
	for _, col := range columns {
		sort.Slice(col, func(i, j int) bool {
			return lessInColumn(idx[col[i]], idx[col[j]])
		})
	}
	for i := range columns {
		if columns[i] == nil {
			columns[i] = []string{}
		}
	}

	return Layout{Layers: layers, Columns: columns}
}

// AutoLayout assigns every node a grid position from Plan and returns the
// layout it applied. Layer i maps to x = 50 + 350i and row j to
// y = 50 + 140j.
func (g *Graph) AutoLayout() Layout {
	l := g.Plan()
	idx := g.index()
	for i, col := range l.Columns {
		for j, id := range col {
			n := idx[id]
			n.Position = Position{
				X: float64(LayoutOriginX + i*LayoutColumnGap),
				Y: float64(LayoutOriginY + j*(LayoutNodeH+LayoutRowGap)),
			}
		}
	}
	// Duplicate ids share the first node's slot.
	for _, n := range g.Nodes {
		if first := idx[n.ID]; first != n {
			n.Position = first.Position
		}
	}
	return l
}

type layering struct {
	idx      map[string]*Node
	incoming map[string][]string
	memo     map[string]int
	onPath   map[string]bool
}

// layer resolves the layer of id along the current path. The second result
// reports whether the cycle guard fired anywhere below id; such results
// depend on the path taken and are not memoised.
func (r *layering) layer(id string) (int, bool) {
	n := r.idx[id]
	if l, ok := forcedLayer(n); ok {
		return l, false
	}
	if r.onPath[id] {
		return cycleLayer, true
	}
	if l, ok := r.memo[id]; ok {
		return l, false
	}

	r.onPath[id] = true
	deepest, cyclic := -1, false
	for _, dep := range r.dependencies(n) {
		if _, ok := r.idx[dep]; !ok {
			continue
		}
		l, c := r.layer(dep)
		cyclic = cyclic || c
		if l > deepest {
			deepest = l
		}
	}
	delete(r.onPath, id)

	l := deepest + 1
	if !cyclic {
		r.memo[id] = l
	}
	return l, cyclic
}

func (r *layering) dependencies(n *Node) []string {
	var deps []string
	switch {
	case n.IsProcess():
		deps = append(deps, n.Process.Inputs...)
	case n.IsData():
		if src := n.Data.SourceID(); src != "" {
			deps = append(deps, src)
		}
	}
	return append(deps, r.incoming[n.ID]...)
}

func forcedLayer(n *Node) (int, bool) {
	switch {
	case n.IsData() && n.Data.Category == CategoryRaw:
		return 0, true
	case n.IsProcess() && n.Process.Category == ProcessNested:
		return 1, true
	}
	return 0, false
}

func isOutput(n *Node) bool {
	return n.IsData() && n.Data.Category == CategoryOutput
}

func lessInColumn(a, b *Node) bool {
	if a.IsData() != b.IsData() {
		return a.IsData()
	}
	if an, bn := a.Name(), b.Name(); an != bn {
		return an < bn
	}
	return a.ID < b.ID
}
