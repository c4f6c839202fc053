package db

// Workflow is a row of the workflows table. Tags and Canvas hold JSON text.
type Workflow struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Tags        string
	Archived    int64
	Canvas      string
	Version     int64
	CreatedAt   int64
	UpdatedAt   int64
}

// WorkflowSummary is a list row. Metadata is the canvas metadata object as
// JSON text, or empty when the canvas has none.
type WorkflowSummary struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Tags        string
	Archived    int64
	Version     int64
	Metadata    string
	CreatedAt   int64
	UpdatedAt   int64
}

// WorkflowVersion is a row of the workflow_versions history table.
type WorkflowVersion struct {
	WorkflowID string
	Version    int64
	Canvas     string
	CreatedAt  int64
}
