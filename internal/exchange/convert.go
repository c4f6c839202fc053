package exchange

import (
	"time"

	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/schema"
)

// Source identifies the workflow being exported.
type Source struct {
	ID     string
	Name   string
	Canvas graph.Canvas
}

// Export partitions the canvas into a document. Nodes keep their canvas
// order within each group. Edges are copied as stored.
func Export(src Source, now time.Time) Document {
	var flow Flow
	for _, n := range src.Canvas.Nodes {
		switch {
		case n.IsData():
			e := dataEntry(n)
			switch n.Data.Category {
			case graph.CategoryRaw:
				e.Source = nil
				flow.RawInputs = append(flow.RawInputs, e)
			case graph.CategoryOutput:
				flow.Outputs = append(flow.Outputs, e)
			default:
				flow.IntermediateData = append(flow.IntermediateData, e)
			}
		case n.IsProcess():
			e := processEntry(n)
			if n.Process.Category == graph.ProcessNested {
				e.Reusable = true
				flow.Processes.Nested = append(flow.Processes.Nested, e)
				continue
			}
			e.SelectedFields = cloneSelections(n.Process.SelectedFields)
			if e.SelectedFields == nil {
				e.SelectedFields = map[string]schema.Selection{}
			}
			flow.Processes.Main = append(flow.Processes.Main, e)
		}
	}
	flow.normalize()

	edges := make([]graph.Edge, len(src.Canvas.Edges))
	for i, e := range src.Canvas.Edges {
		edges[i] = e.Clone()
	}

	stats := flow.Count()
	meta := Metadata{
		FlowName:     stringMeta(src.Canvas.Metadata, "flowName"),
		WorkflowName: src.Name,
		WorkflowID:   src.ID,
		ExportDate:   now.UTC().Format(time.RFC3339Nano),
		Version:      FormatVersion,
		TotalNodes:   len(src.Canvas.Nodes),
		TotalEdges:   len(edges),
		Statistics:   &stats,
	}
	if meta.FlowName == "" {
		meta.FlowName = src.Name
	}

	return Document{Metadata: meta, Flow: flow, Edges: edges}
}

// ToCanvas rebuilds a canvas from a document. Groups decide the node
// category, so a raw input never keeps a source. Node ids, positions and
// edges are kept verbatim. fallbackName names the flow when the document
// metadata does not.
func ToCanvas(doc Document, fallbackName string, now time.Time) graph.Canvas {
	var nodes []*graph.Node

	addData := func(entries []DataEntry, cat graph.DataCategory) {
		for _, e := range entries {
			p := graph.DataPayload{
				Name:        e.Name,
				Description: e.Description,
				Category:    cat,
				ValueType:   e.DataType,
				Schema:      e.Schema.Clone(),
			}
			if cat != graph.CategoryRaw && e.Source != nil && *e.Source != "" {
				s := *e.Source
				p.Source = &s
			}
			n := graph.NewDataNode(e.ID, p)
			n.Position = e.Position
			nodes = append(nodes, n)
		}
	}
	addProcess := func(entries []ProcessEntry, cat graph.ProcessCategory) {
		for _, e := range entries {
			inputs := e.Inputs
			if inputs == nil {
				inputs = e.Dependencies
			}
			p := graph.ProcessPayload{
				Name:        e.Name,
				Description: e.Description,
				Category:    cat,
				Platform:    cloneStrings(e.Platform),
				Checks:      cloneStrings(e.Checks),
				Inputs:      cloneStrings(inputs),
			}
			if cat == graph.ProcessMain && len(e.SelectedFields) > 0 {
				p.SelectedFields = cloneSelections(e.SelectedFields)
			}
			n := graph.NewProcessNode(e.ID, p)
			n.Position = e.Position
			nodes = append(nodes, n)
		}
	}

	addData(doc.Flow.RawInputs, graph.CategoryRaw)
	addProcess(doc.Flow.Processes.Main, graph.ProcessMain)
	addProcess(doc.Flow.Processes.Nested, graph.ProcessNested)
	addData(doc.Flow.IntermediateData, graph.CategoryIntermediate)
	addData(doc.Flow.Outputs, graph.CategoryOutput)

	edges := make([]graph.Edge, len(doc.Edges))
	for i, e := range doc.Edges {
		edges[i] = e.Clone()
	}

	name := doc.Metadata.FlowName
	if name == "" {
		name = fallbackName
	}
	exported := doc.Metadata.ExportDate
	if exported == "" {
		exported = now.UTC().Format(time.RFC3339Nano)
	}
	version := doc.Metadata.Version
	if version == "" {
		version = FormatVersion
	}

	if nodes == nil {
		nodes = []*graph.Node{}
	}
	return graph.Canvas{
		Nodes: nodes,
		Edges: edges,
		Metadata: graph.Metadata{
			"flowName":   name,
			"exportDate": exported,
			"version":    version,
			"totalNodes": len(nodes),
			"totalEdges": len(edges),
		},
	}
}

func dataEntry(n *graph.Node) DataEntry {
	e := DataEntry{
		ID:          n.ID,
		Name:        n.Data.Name,
		Description: n.Data.Description,
		DataType:    n.Data.ValueType,
		Schema:      n.Data.Schema.Clone(),
		Position:    n.Position,
	}
	if n.Data.Source != nil {
		s := *n.Data.Source
		e.Source = &s
	}
	return e
}

func processEntry(n *graph.Node) ProcessEntry {
	inputs := cloneStrings(n.Process.Inputs)
	if inputs == nil {
		inputs = []string{}
	}
	return ProcessEntry{
		ID:           n.ID,
		Name:         n.Process.Name,
		Description:  n.Process.Description,
		Platform:     nonNil(cloneStrings(n.Process.Platform)),
		Checks:       nonNil(cloneStrings(n.Process.Checks)),
		Inputs:       inputs,
		Dependencies: cloneStrings(inputs),
		Position:     n.Position,
	}
}

func (f *Flow) normalize() {
	if f.RawInputs == nil {
		f.RawInputs = []DataEntry{}
	}
	if f.Processes.Main == nil {
		f.Processes.Main = []ProcessEntry{}
	}
	if f.Processes.Nested == nil {
		f.Processes.Nested = []ProcessEntry{}
	}
	if f.IntermediateData == nil {
		f.IntermediateData = []DataEntry{}
	}
	if f.Outputs == nil {
		f.Outputs = []DataEntry{}
	}
}

func stringMeta(m graph.Metadata, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func cloneSelections(in map[string]schema.Selection) map[string]schema.Selection {
	if in == nil {
		return nil
	}
	out := make(map[string]schema.Selection, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
