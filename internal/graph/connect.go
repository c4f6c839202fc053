package graph

// Opacity values used when a selection dims unrelated elements.
const (
	OpacityLit    = 1.0
	OpacityDimmed = 0.3
)

type direction int

const (
	both direction = iota
	upstream
	downstream
)

// Connected returns the ids reachable from id by following edges in either
// direction, id included. The walk fans out both ways only at the start;
// each branch then keeps its direction, so a node reached upstream keeps
// walking upstream. Edges to missing nodes are ignored. An unknown or empty
// id yields an empty set.
func (g *Graph) Connected(id string) map[string]bool {
	seen := make(map[string]bool)
	if id == "" {
		return seen
	}
	idx := g.index()
	if _, ok := idx[id]; !ok {
		return seen
	}
	g.walk(idx, id, both, seen)
	return seen
}

func (g *Graph) walk(idx map[string]*Node, id string, dir direction, seen map[string]bool) {
	if seen[id] {
		return
	}
	seen[id] = true
	for _, e := range g.Edges {
		if dir != downstream && e.Target == id {
			if _, ok := idx[e.Source]; ok {
				g.walk(idx, e.Source, upstream, seen)
			}
		}
		if dir != upstream && e.Source == id {
			if _, ok := idx[e.Target]; ok {
				g.walk(idx, e.Target, downstream, seen)
			}
		}
	}
}

// Highlight is the dimming state derived from a selected node.
type Highlight struct {
	Selected string
	Set      map[string]bool
}

// Highlight computes the highlight for selecting id. An empty id clears it.
func (g *Graph) Highlight(id string) Highlight {
	if id == "" {
		return Highlight{}
	}
	return Highlight{Selected: id, Set: g.Connected(id)}
}

// Active reports whether anything is dimmed.
func (h Highlight) Active() bool { return len(h.Set) > 0 }

// NodeOpacity returns the display opacity for a node.
func (h Highlight) NodeOpacity(id string) float64 {
	if !h.Active() || h.Set[id] {
		return OpacityLit
	}
	return OpacityDimmed
}

// EdgeOpacity returns the display opacity for an edge. An edge is lit only
// when both endpoints are.
func (h Highlight) EdgeOpacity(e Edge) float64 {
	if !h.Active() || (h.Set[e.Source] && h.Set[e.Target]) {
		return OpacityLit
	}
	return OpacityDimmed
}
