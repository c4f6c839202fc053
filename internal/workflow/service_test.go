package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alexcabrera/kybflow/internal/graph"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	clock := time.UnixMilli(1700000000000)
	svc, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"),
		WithClock(func() time.Time {
			clock = clock.Add(time.Millisecond)
			return clock
		}),
	)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func twoNodeCanvas() *graph.Canvas {
	src := "p1"
	return &graph.Canvas{
		Nodes: []*graph.Node{
			graph.NewProcessNode("p1", graph.ProcessPayload{Name: "Sanctions Screening", Category: graph.ProcessMain}),
			graph.NewDataNode("d1", graph.DataPayload{Name: "Screening Result", Category: graph.CategoryIntermediate, Source: &src}),
		},
		Edges: []graph.Edge{{ID: "e1", Source: "p1", Target: "d1"}},
	}
}

func ptr[T any](v T) *T { return &v }

func TestKYCFlowScenario(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateParams{Name: "KYC Flow", Canvas: &graph.Canvas{}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.Version != 1 || w.Slug != "kyc-flow" {
		t.Fatalf("created version=%d slug=%q", w.Version, w.Slug)
	}

	updated, err := svc.Update(ctx, w.ID, UpdateParams{Canvas: twoNodeCanvas(), Version: ptr(1)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}
	if got := updated.Canvas.Metadata["totalNodes"]; got != float64(2) {
		t.Errorf("totalNodes = %v, want 2", got)
	}

	_, err = svc.Update(ctx, w.ID, UpdateParams{Canvas: &graph.Canvas{}, Version: ptr(1)})
	var conflict *VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second update err = %v, want VersionConflictError", err)
	}
	if conflict.Current != 2 {
		t.Errorf("current = %d, want 2", conflict.Current)
	}

	stored, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Version != 2 || len(stored.Canvas.Nodes) != 2 {
		t.Errorf("conflicting update mutated the row: version=%d nodes=%d", stored.Version, len(stored.Canvas.Nodes))
	}

	prev, err := svc.Version(ctx, w.ID, 1)
	if err != nil {
		t.Fatalf("Version(1): %v", err)
	}
	if len(prev.Canvas.Nodes) != 0 {
		t.Errorf("history at v1 has %d nodes, want 0", len(prev.Canvas.Nodes))
	}
	if _, err := svc.Version(ctx, w.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Version(2) err = %v, want ErrNotFound", err)
	}
}

func TestSlugUniqueness(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateParams{Name: "KYC Flow", Canvas: &graph.Canvas{}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Create(ctx, CreateParams{Name: "KYC Flow", Canvas: &graph.Canvas{}})
	if err != nil {
		t.Fatal(err)
	}
	c, err := svc.Create(ctx, CreateParams{Name: "kyc  flow!", Canvas: &graph.Canvas{}})
	if err != nil {
		t.Fatal(err)
	}
	if a.Slug != "kyc-flow" || b.Slug != "kyc-flow-1" || c.Slug != "kyc-flow-2" {
		t.Errorf("slugs = %q %q %q", a.Slug, b.Slug, c.Slug)
	}

	// Renaming to the same name keeps the row's own slug.
	same, err := svc.Update(ctx, a.ID, UpdateParams{Name: ptr("KYC Flow")})
	if err != nil {
		t.Fatal(err)
	}
	if same.Slug != "kyc-flow" {
		t.Errorf("rename slug = %q, want kyc-flow", same.Slug)
	}
	if same.Version != 1 {
		t.Errorf("rename bumped version to %d", same.Version)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"KYC Flow", "kyc-flow"},
		{"  --Business  Verification (EU)--  ", "business-verification-eu"},
		{"Ünïcode Naïve", "n-code-na-ve"},
		{"!!!", "workflow"},
		{"a very long workflow name that keeps going well past fifty characters", "a-very-long-workflow-name-that-keeps-going-well-pa"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.name); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateParams{Name: " ", Canvas: &graph.Canvas{}}); !errors.Is(err, ErrValidation) {
		t.Errorf("blank name err = %v", err)
	}
	if _, err := svc.Create(ctx, CreateParams{Name: "x"}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing canvas err = %v", err)
	}
	if n, _ := svc.Count(ctx); n != 0 {
		t.Errorf("rejected creates wrote %d rows", n)
	}
}

func TestUpdateWithoutVersionSkipsCheck(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	w, _ := svc.Create(ctx, CreateParams{Name: "Flow", Canvas: &graph.Canvas{}})
	for i := 0; i < 2; i++ {
		if _, err := svc.Update(ctx, w.ID, UpdateParams{Canvas: twoNodeCanvas()}); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	history, err := svc.History(ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	var versions []int
	for _, v := range history {
		versions = append(versions, v.Version)
	}
	if diff := cmp.Diff([]int{2, 1}, versions); diff != "" {
		t.Errorf("history versions (-want +got):\n%s", diff)
	}
}

func TestUpdateFields(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	w, _ := svc.Create(ctx, CreateParams{Name: "Flow", Tags: []string{"kyc"}, Canvas: &graph.Canvas{}})

	got, err := svc.Update(ctx, w.ID, UpdateParams{
		Description: ptr("EU onboarding"),
		Tags:        []string{"kyb", " eu ", "kyb", ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "EU onboarding" {
		t.Errorf("description = %q", got.Description)
	}
	if diff := cmp.Diff([]string{"kyb", "eu"}, got.Tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	if !got.UpdatedAt.After(w.UpdatedAt) {
		t.Error("updatedAt did not advance")
	}

	touched, err := svc.Update(ctx, w.ID, UpdateParams{})
	if err != nil {
		t.Fatal(err)
	}
	if touched.Version != got.Version || !touched.UpdatedAt.After(got.UpdatedAt) {
		t.Errorf("empty update: version %d, updatedAt %v", touched.Version, touched.UpdatedAt)
	}

	if _, err := svc.Update(ctx, "missing", UpdateParams{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestDeleteArchives(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	w, _ := svc.Create(ctx, CreateParams{Name: "Flow", Canvas: &graph.Canvas{}})
	if _, err := svc.Update(ctx, w.ID, UpdateParams{Canvas: twoNodeCanvas()}); err != nil {
		t.Fatal(err)
	}

	a, err := svc.Delete(ctx, w.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if a.ID != w.ID || a.Name != "Flow" {
		t.Errorf("archived = %+v", a)
	}

	for name, fn := range map[string]func() error{
		"get":       func() error { _, err := svc.Get(ctx, w.ID); return err },
		"update":    func() error { _, err := svc.Update(ctx, w.ID, UpdateParams{}); return err },
		"delete":    func() error { _, err := svc.Delete(ctx, w.ID); return err },
		"duplicate": func() error { _, err := svc.Duplicate(ctx, w.ID); return err },
		"export":    func() error { _, err := svc.Export(ctx, w.ID); return err },
	} {
		if err := fn(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s after archive: %v, want ErrNotFound", name, err)
		}
	}

	active, _ := svc.List(ctx, ListParams{})
	archived, _ := svc.List(ctx, ListParams{Archived: true})
	if len(active.Workflows) != 0 || len(archived.Workflows) != 1 {
		t.Errorf("active=%d archived=%d", len(active.Workflows), len(archived.Workflows))
	}

	var kept int
	svc.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_versions WHERE workflow_id = ?", w.ID).Scan(&kept)
	if kept != 1 {
		t.Errorf("history rows after archive = %d, want 1", kept)
	}
}

func TestDuplicate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	w, _ := svc.Create(ctx, CreateParams{Name: "Flow", Description: "d", Tags: []string{"a"}, Canvas: twoNodeCanvas()})
	svc.Update(ctx, w.ID, UpdateParams{Canvas: twoNodeCanvas()})

	dup, err := svc.Duplicate(ctx, w.ID)
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup.ID == w.ID || dup.Name != "Flow (Copy)" || dup.Slug != "flow-copy" || dup.Version != 1 {
		t.Errorf("duplicate = %+v", dup)
	}
	if dup.Description != "d" || len(dup.Tags) != 1 || len(dup.Canvas.Nodes) != 2 {
		t.Errorf("duplicate lost content: %+v", dup)
	}
	if h, _ := svc.History(ctx, dup.ID); len(h) != 0 {
		t.Errorf("duplicate copied %d history rows", len(h))
	}
	if _, err := svc.Duplicate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}

func TestList(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	svc.Create(ctx, CreateParams{Name: "EU Business Check", Tags: []string{"kyb", "eu"}, Canvas: twoNodeCanvas()})
	svc.Create(ctx, CreateParams{Name: "US Person Check", Description: "identity", Tags: []string{"kyc"}, Canvas: &graph.Canvas{}})
	svc.Create(ctx, CreateParams{Name: "Sanctions", Tags: []string{"kyc", "aml"}, Canvas: &graph.Canvas{}})

	tests := []struct {
		name   string
		params ListParams
		want   []string
	}{
		{"all newest first", ListParams{}, []string{"Sanctions", "US Person Check", "EU Business Check"}},
		{"query name", ListParams{Query: "check"}, []string{"US Person Check", "EU Business Check"}},
		{"query description", ListParams{Query: "IDENT"}, []string{"US Person Check"}},
		{"tag overlap", ListParams{Tags: []string{"aml", "eu"}}, []string{"Sanctions", "EU Business Check"}},
		{"page", ListParams{Limit: 1, Offset: 1}, []string{"US Person Check"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.List(ctx, tt.params)
			if err != nil {
				t.Fatal(err)
			}
			var names []string
			for _, w := range res.Workflows {
				names = append(names, w.Name)
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("names (-want +got):\n%s", diff)
			}
		})
	}

	res, _ := svc.List(ctx, ListParams{Limit: 1})
	if res.Pagination.Total != 3 || res.Pagination.Limit != 1 {
		t.Errorf("pagination = %+v", res.Pagination)
	}
	res, _ = svc.List(ctx, ListParams{Query: "EU"})
	if len(res.Workflows) != 1 || res.Workflows[0].TotalNodes != 2 || res.Workflows[0].TotalEdges != 1 {
		t.Errorf("summary totals = %+v", res.Workflows)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	w, _ := svc.Create(ctx, CreateParams{Name: "Flow", Canvas: twoNodeCanvas()})
	doc, err := svc.Export(ctx, w.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, _ := json.Marshal(doc)

	imported, err := svc.Import(ctx, ImportParams{Document: raw})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.Name != DefaultImportName || imported.Version != 1 {
		t.Errorf("imported = %+v", imported)
	}
	if len(imported.Canvas.Nodes) != 2 || len(imported.Canvas.Edges) != 1 {
		t.Fatalf("imported canvas = %+v", imported.Canvas)
	}
	d := imported.Canvas.Nodes[1]
	if d.ID != "d1" || d.Data.SourceID() != "p1" {
		t.Errorf("imported data node = %+v", d)
	}

	if _, err := svc.Import(ctx, ImportParams{Document: json.RawMessage(`{"metadata":{}}`)}); !errors.Is(err, ErrValidation) {
		t.Errorf("malformed import err = %v", err)
	}
	if _, err := svc.Import(ctx, ImportParams{}); !errors.Is(err, ErrValidation) {
		t.Errorf("empty import err = %v", err)
	}
}
