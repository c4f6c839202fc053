package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexcabrera/kybflow/internal/db"
	"github.com/alexcabrera/kybflow/internal/exchange"
	"github.com/alexcabrera/kybflow/internal/graph"
)

const (
	// DefaultListLimit applies when a listing names no limit.
	DefaultListLimit = 50

	// DefaultImportName names imports that arrive without a name.
	DefaultImportName = "Imported Workflow"

	copySuffix = " (Copy)"
)

// Service is the workflow store.
type Service struct {
	db     *sql.DB
	q      *db.Queries
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides workflow id generation.
func WithIDs(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a store over an open database and its queries.
func NewService(database *sql.DB, queries *db.Queries, opts ...Option) *Service {
	s := &Service{
		db:     database,
		q:      queries,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("github.com/alexcabrera/kybflow/internal/workflow"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the database at path, applies migrations, and returns a
// store. Close releases it.
func Open(ctx context.Context, path string, opts ...Option) (*Service, error) {
	database, queries, err := db.ConnectWithQueries(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewService(database, queries, opts...), nil
}

// Close closes prepared queries and the database.
func (s *Service) Close() error {
	if err := s.q.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// CreateParams describes a new workflow.
type CreateParams struct {
	Name        string
	Description string
	Tags        []string
	Canvas      *graph.Canvas
}

// Create stores a new workflow at version 1.
func (s *Service) Create(ctx context.Context, p CreateParams) (w Workflow, err error) {
	ctx, span := s.start(ctx, "workflow.Create")
	defer func() { finish(span, err) }()

	name := strings.TrimSpace(p.Name)
	if name == "" || p.Canvas == nil {
		return Workflow{}, validationf("name and canvas are required")
	}
	canvas, err := encodeCanvas(*p.Canvas)
	if err != nil {
		return Workflow{}, err
	}
	return s.insert(ctx, name, p.Description, p.Tags, canvas)
}

func (s *Service) insert(ctx context.Context, name, description string, tags []string, canvas string) (Workflow, error) {
	tagsJSON, _ := encodeTags(tags)
	now := s.now().UnixMilli()

	var row db.Workflow
	err := s.inTx(ctx, func(q *db.Queries) error {
		slug, err := uniqueSlug(ctx, q, name, "")
		if err != nil {
			return err
		}
		row, err = q.CreateWorkflow(ctx, db.CreateWorkflowParams{
			ID:          s.newID(),
			Name:        name,
			Slug:        slug,
			Description: description,
			Tags:        tagsJSON,
			Canvas:      canvas,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("insert workflow: %w", err)
		}
		return nil
	})
	if err != nil {
		return Workflow{}, err
	}

	s.logger.Info("workflow created", "id", row.ID, "slug", row.Slug)
	return fromDB(row)
}

// Get returns a non-archived workflow.
func (s *Service) Get(ctx context.Context, id string) (w Workflow, err error) {
	ctx, span := s.start(ctx, "workflow.Get", attribute.String("workflow.id", id))
	defer func() { finish(span, err) }()

	row, err := s.q.GetWorkflow(ctx, id)
	if err != nil {
		return Workflow{}, notFound(err)
	}
	return fromDB(row)
}

// ListParams filters a listing.
type ListParams struct {
	// Query matches a case-insensitive substring of name or description.
	Query string
	// Tags keeps workflows sharing at least one tag.
	Tags     []string
	Archived bool
	Limit    int
	Offset   int
}

// Pagination echoes the window of a listing.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListResult is a page of summaries, most recently updated first.
type ListResult struct {
	Workflows  []Summary  `json:"workflows"`
	Pagination Pagination `json:"pagination"`
}

// List returns workflows matching p.
func (s *Service) List(ctx context.Context, p ListParams) (res ListResult, err error) {
	ctx, span := s.start(ctx, "workflow.List")
	defer func() { finish(span, err) }()

	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	tags, _ := encodeTags(p.Tags)
	archived := boolToInt64(p.Archived)
	query := strings.TrimSpace(p.Query)

	rows, err := s.q.ListWorkflows(ctx, db.ListWorkflowsParams{
		Archived: archived,
		Query:    query,
		Tags:     tags,
		Limit:    int64(p.Limit),
		Offset:   int64(p.Offset),
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list workflows: %w", err)
	}
	total, err := s.q.CountWorkflows(ctx, db.CountWorkflowsParams{
		Archived: archived,
		Query:    query,
		Tags:     tags,
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("count workflows: %w", err)
	}

	res = ListResult{
		Workflows:  make([]Summary, 0, len(rows)),
		Pagination: Pagination{Total: int(total), Limit: p.Limit, Offset: p.Offset},
	}
	for _, row := range rows {
		sum, err := summaryFromDB(row)
		if err != nil {
			return ListResult{}, err
		}
		res.Workflows = append(res.Workflows, sum)
	}
	return res, nil
}

// UpdateParams holds the fields to change. Nil fields are left alone.
// When Version is set it must equal the stored version.
type UpdateParams struct {
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	Tags        []string      `json:"tags"`
	Canvas      *graph.Canvas `json:"canvas,omitempty"`
	Version     *int          `json:"version,omitempty"`
}

// Update applies p in one transaction. A new canvas first snapshots the
// stored canvas into history at the stored version, then bumps the version.
// A name change re-derives the slug. An empty update only touches the
// update time.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (w Workflow, err error) {
	ctx, span := s.start(ctx, "workflow.Update", attribute.String("workflow.id", id))
	defer func() { finish(span, err) }()

	params := db.UpdateWorkflowParams{ID: id}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return Workflow{}, validationf("name cannot be empty")
		}
		params.SetName = true
		params.Name = name
	}
	if p.Description != nil {
		params.SetDescription = true
		params.Description = *p.Description
	}
	if p.Tags != nil {
		params.SetTags = true
		params.Tags, _ = encodeTags(p.Tags)
	}
	if p.Canvas != nil {
		canvas, err := encodeCanvas(*p.Canvas)
		if err != nil {
			return Workflow{}, err
		}
		params.SetCanvas = true
		params.Canvas = canvas
	}

	var row db.Workflow
	err = s.inTx(ctx, func(q *db.Queries) error {
		cur, err := q.GetWorkflow(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if p.Version != nil && int64(*p.Version) != cur.Version {
			return &VersionConflictError{Current: int(cur.Version)}
		}

		now := s.now().UnixMilli()
		if params.SetCanvas {
			if err := q.SnapshotWorkflow(ctx, id, now); err != nil {
				return fmt.Errorf("snapshot workflow: %w", err)
			}
		}
		if params.SetName {
			if params.Slug, err = uniqueSlug(ctx, q, params.Name, id); err != nil {
				return err
			}
		}

		params.UpdatedAt = now
		params.ExpectedVersion = cur.Version
		row, err = q.UpdateWorkflow(ctx, params)
		if errors.Is(err, sql.ErrNoRows) {
			return s.conflict(ctx, q, id)
		}
		if err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}
		return nil
	})
	if err != nil {
		return Workflow{}, err
	}

	s.logger.Info("workflow updated", "id", row.ID, "version", row.Version)
	return fromDB(row)
}

// conflict reports the version a concurrent writer left behind.
func (s *Service) conflict(ctx context.Context, q *db.Queries, id string) error {
	cur, err := q.GetWorkflow(ctx, id)
	if err != nil {
		return notFound(err)
	}
	return &VersionConflictError{Current: int(cur.Version)}
}

// Delete archives a workflow. Its history is kept.
func (s *Service) Delete(ctx context.Context, id string) (a Archived, err error) {
	ctx, span := s.start(ctx, "workflow.Delete", attribute.String("workflow.id", id))
	defer func() { finish(span, err) }()

	row, err := s.q.ArchiveWorkflow(ctx, id, s.now().UnixMilli())
	if err != nil {
		return Archived{}, notFound(err)
	}
	s.logger.Info("workflow archived", "id", row.ID)
	return Archived{ID: row.ID, Name: row.Name}, nil
}

// Duplicate copies name, description, tags and canvas into a new workflow
// named "<name> (Copy)". History is not copied.
func (s *Service) Duplicate(ctx context.Context, id string) (w Workflow, err error) {
	ctx, span := s.start(ctx, "workflow.Duplicate", attribute.String("workflow.id", id))
	defer func() { finish(span, err) }()

	src, err := s.q.GetWorkflow(ctx, id)
	if err != nil {
		return Workflow{}, notFound(err)
	}
	tags, err := decodeTags(src.Tags)
	if err != nil {
		return Workflow{}, err
	}
	return s.insert(ctx, src.Name+copySuffix, src.Description, tags, src.Canvas)
}

// ImportParams describes a workflow created from an export document.
type ImportParams struct {
	Name        string
	Description string
	Tags        []string
	Document    json.RawMessage
}

// Import validates an export document, rebuilds its canvas, and stores it
// as a new workflow.
func (s *Service) Import(ctx context.Context, p ImportParams) (w Workflow, err error) {
	ctx, span := s.start(ctx, "workflow.Import")
	defer func() { finish(span, err) }()

	if len(p.Document) == 0 || string(p.Document) == "null" {
		return Workflow{}, validationf("export data is required")
	}
	doc, err := exchange.Parse(p.Document)
	if err != nil {
		var verr *exchange.ValidationError
		if errors.As(err, &verr) {
			return Workflow{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return Workflow{}, err
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = DefaultImportName
	}
	canvas, err := encodeCanvas(exchange.ToCanvas(doc, name, s.now()))
	if err != nil {
		return Workflow{}, err
	}
	return s.insert(ctx, name, p.Description, p.Tags, canvas)
}

// Export returns the document form of a workflow.
func (s *Service) Export(ctx context.Context, id string) (doc exchange.Document, err error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return exchange.Document{}, err
	}
	return exchange.Export(exchange.Source{ID: w.ID, Name: w.Name, Canvas: w.Canvas}, s.now()), nil
}

// History lists the snapshots of a workflow, newest first.
func (s *Service) History(ctx context.Context, id string) (vs []Version, err error) {
	ctx, span := s.start(ctx, "workflow.History", attribute.String("workflow.id", id))
	defer func() { finish(span, err) }()

	if _, err := s.q.GetWorkflow(ctx, id); err != nil {
		return nil, notFound(err)
	}
	rows, err := s.q.ListWorkflowVersions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	vs = make([]Version, 0, len(rows))
	for _, row := range rows {
		v, err := versionFromDB(row)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// Version returns the canvas a workflow had at version n.
func (s *Service) Version(ctx context.Context, id string, n int) (v Version, err error) {
	ctx, span := s.start(ctx, "workflow.Version",
		attribute.String("workflow.id", id),
		attribute.Int("workflow.version", n),
	)
	defer func() { finish(span, err) }()

	if _, err := s.q.GetWorkflow(ctx, id); err != nil {
		return Version{}, notFound(err)
	}
	row, err := s.q.GetWorkflowVersion(ctx, id, int64(n))
	if err != nil {
		return Version{}, notFound(err)
	}
	return versionFromDB(row)
}

// Count returns the number of stored workflows, archived ones included.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.q.CountAllWorkflows(ctx)
}

func (s *Service) inTx(ctx context.Context, fn func(*db.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(s.q.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// encodeCanvas serializes c and stamps metadata.totalNodes and
// metadata.totalEdges.
func encodeCanvas(c graph.Canvas) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("%w: encode canvas: %v", ErrValidation, err)
	}
	b, err = sjson.SetBytes(b, "metadata.totalNodes", len(c.Nodes))
	if err != nil {
		return "", fmt.Errorf("stamp canvas totals: %w", err)
	}
	b, err = sjson.SetBytes(b, "metadata.totalEdges", len(c.Edges))
	if err != nil {
		return "", fmt.Errorf("stamp canvas totals: %w", err)
	}
	return string(b), nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
