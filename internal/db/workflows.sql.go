package db

import (
	"context"
)

type namedQuery struct {
	name string
	sql  string
}

var allQueries = []namedQuery{
	{"CreateWorkflow", createWorkflow},
	{"GetWorkflow", getWorkflow},
	{"SlugTaken", slugTaken},
	{"ListWorkflows", listWorkflows},
	{"CountWorkflows", countWorkflows},
	{"CountAllWorkflows", countAllWorkflows},
	{"UpdateWorkflow", updateWorkflow},
	{"ArchiveWorkflow", archiveWorkflow},
	{"SnapshotWorkflow", snapshotWorkflow},
	{"ListWorkflowVersions", listWorkflowVersions},
	{"GetWorkflowVersion", getWorkflowVersion},
}

const workflowColumns = `id, name, slug, description, tags, archived, canvas, version, created_at, updated_at`

func scanWorkflow(row interface{ Scan(...interface{}) error }) (Workflow, error) {
	var i Workflow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Slug,
		&i.Description,
		&i.Tags,
		&i.Archived,
		&i.Canvas,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createWorkflow = `
INSERT INTO workflows (id, name, slug, description, tags, canvas, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + workflowColumns

// CreateWorkflowParams holds the columns of a new row.
type CreateWorkflowParams struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Tags        string
	Canvas      string
	CreatedAt   int64
	UpdatedAt   int64
}

func (q *Queries) CreateWorkflow(ctx context.Context, arg CreateWorkflowParams) (Workflow, error) {
	row := q.queryRow(ctx, createWorkflow,
		arg.ID,
		arg.Name,
		arg.Slug,
		arg.Description,
		arg.Tags,
		arg.Canvas,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanWorkflow(row)
}

const getWorkflow = `
SELECT ` + workflowColumns + `
FROM workflows
WHERE id = ? AND archived = 0`

// GetWorkflow returns a non-archived workflow.
func (q *Queries) GetWorkflow(ctx context.Context, id string) (Workflow, error) {
	return scanWorkflow(q.queryRow(ctx, getWorkflow, id))
}

const slugTaken = `
SELECT EXISTS (SELECT 1 FROM workflows WHERE slug = ? AND id != ?)`

// SlugTaken reports whether any row other than excludeID uses slug.
// Archived rows count.
func (q *Queries) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	var taken int64
	err := q.queryRow(ctx, slugTaken, slug, excludeID).Scan(&taken)
	return taken != 0, err
}

const workflowFilter = `
WHERE archived = ?1
  AND (?2 = '' OR name LIKE '%' || ?2 || '%' OR description LIKE '%' || ?2 || '%')
  AND (?3 IN ('', '[]') OR EXISTS (
        SELECT 1 FROM json_each(workflows.tags) AS t
        WHERE t.value IN (SELECT value FROM json_each(?3))
      ))`

const listWorkflows = `
SELECT id, name, slug, description, tags, archived, version,
       COALESCE(json_extract(canvas, '$.metadata'), '') AS metadata,
       created_at, updated_at
FROM workflows` + workflowFilter + `
ORDER BY updated_at DESC, id
LIMIT ?4 OFFSET ?5`

// ListWorkflowsParams filters a listing. Query is a case-insensitive
// substring of name or description; Tags is a JSON array matched on any
// overlap, "" or "[]" meaning no tag filter.
type ListWorkflowsParams struct {
	Archived int64
	Query    string
	Tags     string
	Limit    int64
	Offset   int64
}

func (q *Queries) ListWorkflows(ctx context.Context, arg ListWorkflowsParams) ([]WorkflowSummary, error) {
	rows, err := q.query(ctx, listWorkflows, arg.Archived, arg.Query, arg.Tags, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorkflowSummary
	for rows.Next() {
		var i WorkflowSummary
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Slug,
			&i.Description,
			&i.Tags,
			&i.Archived,
			&i.Version,
			&i.Metadata,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countWorkflows = `
SELECT COUNT(*) FROM workflows` + workflowFilter

// CountWorkflowsParams mirrors the filter of ListWorkflowsParams.
type CountWorkflowsParams struct {
	Archived int64
	Query    string
	Tags     string
}

func (q *Queries) CountWorkflows(ctx context.Context, arg CountWorkflowsParams) (int64, error) {
	var count int64
	err := q.queryRow(ctx, countWorkflows, arg.Archived, arg.Query, arg.Tags).Scan(&count)
	return count, err
}

const countAllWorkflows = `SELECT COUNT(*) FROM workflows`

// CountAllWorkflows counts every row, archived included.
func (q *Queries) CountAllWorkflows(ctx context.Context) (int64, error) {
	var count int64
	err := q.queryRow(ctx, countAllWorkflows).Scan(&count)
	return count, err
}

const updateWorkflow = `
UPDATE workflows SET
    name        = CASE WHEN ?2 THEN ?3 ELSE name END,
    slug        = CASE WHEN ?2 THEN ?4 ELSE slug END,
    description = CASE WHEN ?5 THEN ?6 ELSE description END,
    tags        = CASE WHEN ?7 THEN ?8 ELSE tags END,
    canvas      = CASE WHEN ?9 THEN ?10 ELSE canvas END,
    version     = CASE WHEN ?9 THEN version + 1 ELSE version END,
    updated_at  = ?11
WHERE id = ?1 AND archived = 0 AND version = ?12
RETURNING ` + workflowColumns

// UpdateWorkflowParams applies the fields whose Set flag is true. The row
// must still be at ExpectedVersion; a canvas change bumps the version.
type UpdateWorkflowParams struct {
	ID              string
	SetName         bool
	Name            string
	Slug            string
	SetDescription  bool
	Description     string
	SetTags         bool
	Tags            string
	SetCanvas       bool
	Canvas          string
	UpdatedAt       int64
	ExpectedVersion int64
}

func (q *Queries) UpdateWorkflow(ctx context.Context, arg UpdateWorkflowParams) (Workflow, error) {
	row := q.queryRow(ctx, updateWorkflow,
		arg.ID,
		arg.SetName,
		arg.Name,
		arg.Slug,
		arg.SetDescription,
		arg.Description,
		arg.SetTags,
		arg.Tags,
		arg.SetCanvas,
		arg.Canvas,
		arg.UpdatedAt,
		arg.ExpectedVersion,
	)
	return scanWorkflow(row)
}

const archiveWorkflow = `
UPDATE workflows SET archived = 1, updated_at = ?
WHERE id = ? AND archived = 0
RETURNING id, name`

// ArchiveWorkflowRow is what ArchiveWorkflow returns.
type ArchiveWorkflowRow struct {
	ID   string
	Name string
}

func (q *Queries) ArchiveWorkflow(ctx context.Context, id string, updatedAt int64) (ArchiveWorkflowRow, error) {
	var i ArchiveWorkflowRow
	err := q.queryRow(ctx, archiveWorkflow, updatedAt, id).Scan(&i.ID, &i.Name)
	return i, err
}

const snapshotWorkflow = `
INSERT INTO workflow_versions (workflow_id, version, canvas, created_at)
SELECT id, version, canvas, ? FROM workflows WHERE id = ?`

// SnapshotWorkflow copies the current canvas and version of a row into
// history.
func (q *Queries) SnapshotWorkflow(ctx context.Context, id string, createdAt int64) error {
	_, err := q.exec(ctx, snapshotWorkflow, createdAt, id)
	return err
}

const listWorkflowVersions = `
SELECT workflow_id, version, canvas, created_at
FROM workflow_versions
WHERE workflow_id = ?
ORDER BY version DESC`

func (q *Queries) ListWorkflowVersions(ctx context.Context, workflowID string) ([]WorkflowVersion, error) {
	rows, err := q.query(ctx, listWorkflowVersions, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WorkflowVersion
	for rows.Next() {
		var i WorkflowVersion
		if err := rows.Scan(&i.WorkflowID, &i.Version, &i.Canvas, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getWorkflowVersion = `
SELECT workflow_id, version, canvas, created_at
FROM workflow_versions
WHERE workflow_id = ? AND version = ?`

func (q *Queries) GetWorkflowVersion(ctx context.Context, workflowID string, version int64) (WorkflowVersion, error) {
	var i WorkflowVersion
	err := q.queryRow(ctx, getWorkflowVersion, workflowID, version).Scan(
		&i.WorkflowID,
		&i.Version,
		&i.Canvas,
		&i.CreatedAt,
	)
	return i, err
}
