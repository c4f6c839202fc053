// Package seed installs the sample KYB/KYC workflow on first run.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexcabrera/kybflow/internal/exchange"
	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

//go:embed sample_canvas.json
var sampleCanvas []byte

const (
	// Name is the sample workflow's name.
	Name = "Sample KYB/KYC Process Flow"

	// Description is the sample workflow's description.
	Description = "A comprehensive workflow demonstrating KYB (Know Your Business) and KYC (Know Your Customer) processes with data inputs, validation steps, and outputs."
)

// Tags are attached to the sample workflow.
var Tags = []string{"kyb", "kyc", "sample", "validation"}

// Store is what seeding needs. The workflow service and the HTTP client
// both satisfy it.
type Store interface {
	List(ctx context.Context, p workflow.ListParams) (workflow.ListResult, error)
	Import(ctx context.Context, p workflow.ImportParams) (workflow.Workflow, error)
}

// Canvas returns a fresh copy of the sample canvas.
func Canvas() (graph.Canvas, error) {
	var c graph.Canvas
	if err := json.Unmarshal(sampleCanvas, &c); err != nil {
		return graph.Canvas{}, fmt.Errorf("parse sample canvas: %w", err)
	}
	return c, nil
}

// Document returns the sample as an export document dated now.
func Document(now time.Time) (json.RawMessage, error) {
	c, err := Canvas()
	if err != nil {
		return nil, err
	}
	doc := exchange.Export(exchange.Source{Name: Name, Canvas: c}, now)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode sample document: %w", err)
	}
	return raw, nil
}

// Run imports the sample when the store has no active workflows. It
// reports whether a workflow was created.
func Run(ctx context.Context, store Store, now time.Time) (workflow.Workflow, bool, error) {
	existing, err := store.List(ctx, workflow.ListParams{Limit: 1})
	if err != nil {
		return workflow.Workflow{}, false, fmt.Errorf("check existing workflows: %w", err)
	}
	if existing.Pagination.Total > 0 {
		return workflow.Workflow{}, false, nil
	}

	doc, err := Document(now)
	if err != nil {
		return workflow.Workflow{}, false, err
	}
	wf, err := store.Import(ctx, workflow.ImportParams{
		Name:        Name,
		Description: Description,
		Tags:        Tags,
		Document:    doc,
	})
	if err != nil {
		return workflow.Workflow{}, false, fmt.Errorf("import sample: %w", err)
	}
	return wf, true, nil
}
