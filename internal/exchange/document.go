// Package exchange converts between the canvas stored for a workflow and the
// denormalized document users download and import. The document groups
// nodes by role (raw inputs, main and nested processes, intermediate data,
// outputs) and carries summary statistics.
package exchange

import (
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/schema"
)

// FormatVersion is written into every exported document.
const FormatVersion = "1.0"

// Document is the export file format.
type Document struct {
	Metadata Metadata     `json:"metadata"`
	Flow     Flow         `json:"flow"`
	Edges    []graph.Edge `json:"edges"`
}

// Metadata describes where a document came from.
type Metadata struct {
	FlowName     string      `json:"flowName,omitempty"`
	WorkflowName string      `json:"workflowName,omitempty"`
	WorkflowID   string      `json:"workflowId,omitempty"`
	ExportDate   string      `json:"exportDate,omitempty"`
	Version      string      `json:"version,omitempty"`
	TotalNodes   int         `json:"totalNodes"`
	TotalEdges   int         `json:"totalEdges"`
	Statistics   *Statistics `json:"statistics,omitempty"`
}

// Statistics counts nodes per role.
type Statistics struct {
	RawInputs        int `json:"rawInputs"`
	MainProcesses    int `json:"mainProcesses"`
	NestedProcesses  int `json:"nestedProcesses"`
	IntermediateData int `json:"intermediateData"`
	Outputs          int `json:"outputs"`
}

// Flow holds the nodes grouped by role.
type Flow struct {
	RawInputs        []DataEntry `json:"rawInputs"`
	Processes        Processes   `json:"processes"`
	IntermediateData []DataEntry `json:"intermediateData"`
	Outputs          []DataEntry `json:"outputs"`
}

// Processes splits process nodes by category.
type Processes struct {
	Main   []ProcessEntry `json:"main"`
	Nested []ProcessEntry `json:"nested"`
}

// DataEntry is a data node in document form. Raw inputs carry no source.
type DataEntry struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	DataType    graph.ValueType    `json:"dataType,omitempty"`
	Source      *string            `json:"source,omitempty"`
	Schema      *schema.Descriptor `json:"schema,omitempty"`
	Position    graph.Position     `json:"position"`
}

// ProcessEntry is a process node in document form. Dependencies repeats
// Inputs for readers of the file; SelectedFields is only written for main
// processes and Reusable only for nested ones.
type ProcessEntry struct {
	ID             string                      `json:"id"`
	Name           string                      `json:"name"`
	Description    string                      `json:"description"`
	Platform       []string                    `json:"platform"`
	Checks         []string                    `json:"checks"`
	Inputs         []string                    `json:"inputs"`
	Dependencies   []string                    `json:"dependencies,omitempty"`
	SelectedFields map[string]schema.Selection `json:"selectedFields,omitempty"`
	Reusable       bool                        `json:"reusable,omitempty"`
	Position       graph.Position              `json:"position"`
}

// Count returns the statistics of the flow.
func (f Flow) Count() Statistics {
	return Statistics{
		RawInputs:        len(f.RawInputs),
		MainProcesses:    len(f.Processes.Main),
		NestedProcesses:  len(f.Processes.Nested),
		IntermediateData: len(f.IntermediateData),
		Outputs:          len(f.Outputs),
	}
}

// Total is the number of nodes in the flow.
func (s Statistics) Total() int {
	return s.RawInputs + s.MainProcesses + s.NestedProcesses + s.IntermediateData + s.Outputs
}
