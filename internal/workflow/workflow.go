// Package workflow is the versioned store of workflow documents. Each
// workflow holds a canvas, a unique slug derived from its name, and an
// append-only history of the canvases it replaced.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/alexcabrera/kybflow/internal/db"
	"github.com/alexcabrera/kybflow/internal/graph"
)

// Workflow is a stored workflow document.
type Workflow struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Tags        []string     `json:"tags"`
	Archived    bool         `json:"archived"`
	Canvas      graph.Canvas `json:"canvas"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Summary is a list entry. It omits the canvas and reports its size.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Archived    bool      `json:"archived"`
	Version     int       `json:"version"`
	TotalNodes  int       `json:"totalNodes"`
	TotalEdges  int       `json:"totalEdges"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Version is a canvas snapshot from history. It holds the canvas the
// workflow had while it was at that version.
type Version struct {
	WorkflowID string       `json:"workflowId"`
	Version    int          `json:"version"`
	Canvas     graph.Canvas `json:"canvas"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Archived is returned by Delete.
type Archived struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func fromDB(row db.Workflow) (Workflow, error) {
	w := Workflow{
		ID:          row.ID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		Archived:    row.Archived != 0,
		Version:     int(row.Version),
		CreatedAt:   time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(row.UpdatedAt).UTC(),
	}
	tags, err := decodeTags(row.Tags)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow %s: %w", row.ID, err)
	}
	w.Tags = tags
	if err := json.Unmarshal([]byte(row.Canvas), &w.Canvas); err != nil {
		return Workflow{}, fmt.Errorf("workflow %s: decode canvas: %w", row.ID, err)
	}
	return w, nil
}

func summaryFromDB(row db.WorkflowSummary) (Summary, error) {
	tags, err := decodeTags(row.Tags)
	if err != nil {
		return Summary{}, fmt.Errorf("workflow %s: %w", row.ID, err)
	}
	meta := gjson.Parse(row.Metadata)
	return Summary{
		ID:          row.ID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		Tags:        tags,
		Archived:    row.Archived != 0,
		Version:     int(row.Version),
		TotalNodes:  int(meta.Get("totalNodes").Int()),
		TotalEdges:  int(meta.Get("totalEdges").Int()),
		CreatedAt:   time.UnixMilli(row.CreatedAt).UTC(),
		UpdatedAt:   time.UnixMilli(row.UpdatedAt).UTC(),
	}, nil
}

func versionFromDB(row db.WorkflowVersion) (Version, error) {
	v := Version{
		WorkflowID: row.WorkflowID,
		Version:    int(row.Version),
		CreatedAt:  time.UnixMilli(row.CreatedAt).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Canvas), &v.Canvas); err != nil {
		return Version{}, fmt.Errorf("workflow %s version %d: decode canvas: %w", row.WorkflowID, row.Version, err)
	}
	return v, nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

// encodeTags trims, drops empties, and removes repeats, keeping first
// occurrence order.
func encodeTags(tags []string) (string, []string) {
	clean := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		clean = append(clean, t)
	}
	b, _ := json.Marshal(clean)
	return string(b), clean
}
