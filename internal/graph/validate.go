package graph

import (
	"fmt"
	"sort"

	"github.com/alexcabrera/kybflow/internal/schema"
)

// IssueCode classifies a relaxed-invariant warning.
type IssueCode string

const (
	IssueDanglingEdge   IssueCode = "dangling-edge"
	IssueDanglingInput  IssueCode = "dangling-input"
	IssueDanglingSource IssueCode = "dangling-source"
	IssueRawWithSource  IssueCode = "raw-with-source"
	IssueDuplicateID    IssueCode = "duplicate-id"
	IssueStaleField     IssueCode = "stale-field"
)

// Issue is a warning about graph consistency. The graph stays usable;
// traversal and layout skip whatever an issue points at.
type Issue struct {
	Code    IssueCode `json:"code"`
	Ref     string    `json:"ref"`
	Message string    `json:"message"`
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s", i.Code, i.Message) }

// Validate lists references that do not resolve, Raw nodes that name a
// source, repeated node ids, and selected fields missing from the input's
// schema. It never fails.
func (g *Graph) Validate() []Issue {
	var issues []Issue

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			issues = append(issues, Issue{
				Code:    IssueDuplicateID,
				Ref:     n.ID,
				Message: fmt.Sprintf("node id %q is used more than once", n.ID),
			})
		}
		seen[n.ID] = true
	}

	for _, n := range g.Nodes {
		switch {
		case n.IsProcess():
			for _, in := range n.Process.Inputs {
				if !seen[in] {
					issues = append(issues, Issue{
						Code:    IssueDanglingInput,
						Ref:     n.ID,
						Message: fmt.Sprintf("process %q lists missing input %q", n.ID, in),
					})
				}
			}
			issues = append(issues, g.staleFields(n)...)
		case n.IsData():
			src := n.Data.SourceID()
			if src == "" {
				continue
			}
			if n.Data.Category == CategoryRaw {
				issues = append(issues, Issue{
					Code:    IssueRawWithSource,
					Ref:     n.ID,
					Message: fmt.Sprintf("raw input %q has source %q", n.ID, src),
				})
			}
			if !seen[src] {
				issues = append(issues, Issue{
					Code:    IssueDanglingSource,
					Ref:     n.ID,
					Message: fmt.Sprintf("data %q has missing source %q", n.ID, src),
				})
			}
		}
	}

	for _, e := range g.Edges {
		if !seen[e.Source] || !seen[e.Target] {
			issues = append(issues, Issue{
				Code:    IssueDanglingEdge,
				Ref:     e.ID,
				Message: fmt.Sprintf("edge %q joins %q -> %q across a missing node", e.ID, e.Source, e.Target),
			})
		}
	}

	return issues
}

// staleFields reports selected paths that no longer resolve against the
// schema of the data node they were picked from.
func (g *Graph) staleFields(p *Node) []Issue {
	var issues []Issue
	inputs := make([]string, 0, len(p.Process.SelectedFields))
	for id := range p.Process.SelectedFields {
		inputs = append(inputs, id)
	}
	sort.Strings(inputs)
	for _, id := range inputs {
		in := g.Node(id)
		if in == nil || !in.IsData() || in.Data.Schema == nil {
			continue
		}
		for _, path := range p.Process.SelectedFields[id].Paths() {
			if _, ok := schema.Lookup(in.Data.Schema, path); !ok {
				issues = append(issues, Issue{
					Code:    IssueStaleField,
					Ref:     p.ID,
					Message: fmt.Sprintf("process %q selects %q, which %q no longer has", p.ID, path, id),
				})
			}
		}
	}
	return issues
}
