package exchange

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/schema"
)

var exportTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func str(s string) *string { return &s }

func sampleCanvas() graph.Canvas {
	raw := graph.NewDataNode("raw-1", graph.DataPayload{
		Name:      "Certificate of Incorporation",
		Category:  graph.CategoryRaw,
		ValueType: graph.ValueJSON,
		Schema:    schema.Object(schema.Prop("company_name", schema.String())),
	})
	raw.Position = graph.Position{X: 50, Y: 50}

	main := graph.NewProcessNode("proc-1", graph.ProcessPayload{
		Name:           "Registry Lookup",
		Category:       graph.ProcessMain,
		Platform:       []string{"Middesk"},
		Checks:         []string{"Company is active"},
		Inputs:         []string{"raw-1"},
		SelectedFields: map[string]schema.Selection{"raw-1": {"company_name": true}},
	})
	main.Position = graph.Position{X: 400, Y: 50}

	nested := graph.NewProcessNode("nested-1", graph.ProcessPayload{
		Name:     "Name Match",
		Category: graph.ProcessNested,
		Inputs:   []string{},
	})

	mid := graph.NewDataNode("mid-1", graph.DataPayload{
		Name:      "Registry Record",
		Category:  graph.CategoryIntermediate,
		ValueType: graph.ValueJSON,
		Source:    str("proc-1"),
	})
	out := graph.NewDataNode("out-1", graph.DataPayload{
		Name:      "KYB Decision",
		Category:  graph.CategoryOutput,
		ValueType: graph.ValueText,
		Source:    str("mid-1"),
	})

	return graph.Canvas{
		Nodes: []*graph.Node{raw, main, nested, mid, out},
		Edges: []graph.Edge{
			{ID: "e1", Source: "raw-1", Target: "proc-1"},
			{ID: "e2", Source: "proc-1", Target: "mid-1", Extra: map[string]json.RawMessage{"animated": json.RawMessage("true")}},
			{ID: "e3", Source: "mid-1", Target: "out-1"},
		},
		Metadata: graph.Metadata{"flowName": "Sample"},
	}
}

func TestExportPartitions(t *testing.T) {
	doc := Export(Source{ID: "wf-1", Name: "KYB", Canvas: sampleCanvas()}, exportTime)

	want := Statistics{RawInputs: 1, MainProcesses: 1, NestedProcesses: 1, IntermediateData: 1, Outputs: 1}
	if diff := cmp.Diff(&want, doc.Metadata.Statistics); diff != "" {
		t.Errorf("statistics mismatch (-want +got):\n%s", diff)
	}
	if doc.Metadata.TotalNodes != 5 || doc.Metadata.TotalEdges != 3 {
		t.Errorf("totals = %d/%d", doc.Metadata.TotalNodes, doc.Metadata.TotalEdges)
	}
	if doc.Metadata.WorkflowID != "wf-1" || doc.Metadata.FlowName != "Sample" || doc.Metadata.Version != FormatVersion {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	if doc.Metadata.ExportDate != "2025-03-01T12:00:00Z" {
		t.Errorf("exportDate = %q", doc.Metadata.ExportDate)
	}

	main := doc.Flow.Processes.Main[0]
	if diff := cmp.Diff([]string{"raw-1"}, main.Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
	if !main.SelectedFields["raw-1"]["company_name"] {
		t.Error("main process should carry selectedFields")
	}
	nested := doc.Flow.Processes.Nested[0]
	if !nested.Reusable || nested.SelectedFields != nil {
		t.Errorf("nested entry = %+v", nested)
	}
	if doc.Flow.RawInputs[0].Source != nil {
		t.Error("raw inputs carry no source")
	}
}

func TestExportEmptyCanvas(t *testing.T) {
	doc := Export(Source{Name: "Empty"}, exportTime)
	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(out); err != nil {
		t.Errorf("empty export does not validate: %v\n%s", err, out)
	}
}

func TestRoundTrip(t *testing.T) {
	orig := sampleCanvas()
	doc := Export(Source{ID: "wf-1", Name: "KYB", Canvas: orig}, exportTime)

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	back := ToCanvas(parsed, "ignored", exportTime)

	byID := func(c graph.Canvas) map[string]*graph.Node {
		m := make(map[string]*graph.Node)
		for _, n := range c.Nodes {
			m[n.ID] = n
		}
		return m
	}
	want, got := byID(orig), byID(back)
	if len(want) != len(got) {
		t.Fatalf("node count %d, want %d", len(got), len(want))
	}
	opts := cmp.Comparer(func(a, b *schema.Descriptor) bool { return a.Equal(b) })
	for id, n := range want {
		if diff := cmp.Diff(n, got[id], opts); diff != "" {
			t.Errorf("node %s mismatch (-want +got):\n%s", id, diff)
		}
	}
	if diff := cmp.Diff(orig.Edges, back.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
	if back.Metadata["flowName"] != "Sample" || back.Metadata["totalNodes"] != 5 {
		t.Errorf("metadata = %v", back.Metadata)
	}
}

func TestToCanvasFallbacks(t *testing.T) {
	raw := []byte(`{
		"flow": {
			"rawInputs": [{"id":"r","name":"R","source":"x"}],
			"processes": {"main": [{"id":"p","name":"P","dependencies":["r"]}]}
		}
	}`)
	doc, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	c := ToCanvas(doc, "Imported Workflow", exportTime)

	if c.Nodes[0].Data.Source != nil {
		t.Error("raw input source should be dropped")
	}
	if diff := cmp.Diff([]string{"r"}, c.Nodes[1].Process.Inputs); diff != "" {
		t.Errorf("inputs from dependencies (-want +got):\n%s", diff)
	}
	if c.Metadata["flowName"] != "Imported Workflow" || c.Metadata["version"] != FormatVersion {
		t.Errorf("metadata = %v", c.Metadata)
	}
	if c.Edges == nil {
		t.Error("edges should be an empty list")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing flow", `{"metadata":{}}`},
		{"entry without id", `{"flow":{"rawInputs":[{"name":"x"}]}}`},
		{"bad edge", `{"flow":{},"edges":[{"id":"e"}]}`},
		{"future version", `{"metadata":{"version":"2.0"},"flow":{}}`},
		{"garbage version", `{"metadata":{"version":"one"},"flow":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.raw))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate = %v, want ValidationError", err)
			}
		})
	}
}

func TestValidateAcceptsMinorVersions(t *testing.T) {
	for _, v := range []string{"1.0", "1.4.2", "1"} {
		raw := []byte(`{"metadata":{"version":"` + v + `"},"flow":{}}`)
		if err := Validate(raw); err != nil {
			t.Errorf("version %s rejected: %v", v, err)
		}
	}
}
