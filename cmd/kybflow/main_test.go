package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexcabrera/kybflow/internal/seed"
	"github.com/alexcabrera/kybflow/internal/server"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

func setupTestServer(t *testing.T) string {
	t.Helper()
	store, err := workflow.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ts := httptest.NewServer(server.New(store).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

// run executes the CLI with args and returns what it printed to stdout.
func run(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	base := []string{"--json", "--config", filepath.Join(t.TempDir(), "none.yaml")}
	if serverURL != "" {
		base = append(base, "--server", serverURL)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdout
	os.Stdout = w

	cmd := newRootCmd()
	cmd.SetArgs(append(base, args...))
	runErr := cmd.ExecuteContext(context.Background())

	w.Close()
	os.Stdout = orig
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String(), runErr
}

func TestSeedAndLayout(t *testing.T) {
	url := setupTestServer(t)

	out, err := run(t, url, "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(out), &wf); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if wf.Name != seed.Name {
		t.Fatalf("seeded %q", wf.Name)
	}

	out, err = run(t, url, "layout", wf.ID)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	var laid workflow.Workflow
	if err := json.Unmarshal([]byte(out), &laid); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if laid.Version != 2 {
		t.Errorf("version after layout = %d, want 2", laid.Version)
	}
	for _, n := range laid.Canvas.Nodes {
		if n.ID == "recommended-industry" && n.Position.X != 50+4*350 {
			t.Errorf("output x = %v, want %v", n.Position.X, 50+4*350)
		}
	}

	out, err = run(t, url, "connected", wf.ID, "id-check")
	if err != nil {
		t.Fatalf("connected: %v", err)
	}
	var conn connectedResult
	if err := json.Unmarshal([]byte(out), &conn); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := []string{"id-check", "id-documents", "id-validation-result"}
	if len(conn.Connected) != len(want) {
		t.Fatalf("connected = %v, want %v", conn.Connected, want)
	}
	for i := range want {
		if conn.Connected[i] != want[i] {
			t.Errorf("connected[%d] = %s, want %s", i, conn.Connected[i], want[i])
		}
	}
}

func TestWorkflowsCommands(t *testing.T) {
	url := setupTestServer(t)

	out, err := run(t, url, "workflows", "create", "KYC Flow", "--tag", "kyc,beta")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var wf workflow.Workflow
	json.Unmarshal([]byte(out), &wf)

	out, err = run(t, url, "workflows", "tag", wf.ID, "beta", "--remove")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	json.Unmarshal([]byte(out), &wf)
	if len(wf.Tags) != 1 || wf.Tags[0] != "kyc" {
		t.Errorf("tags = %v, want [kyc]", wf.Tags)
	}

	if _, err := run(t, url, "workflows", "rename", wf.ID, "KYB Flow"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	out, err = run(t, url, "workflows", "list", "--tag", "kyc")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list workflow.ListResult
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if list.Pagination.Total != 1 || list.Workflows[0].Slug != "kyb-flow" {
		t.Errorf("unexpected list: %+v", list)
	}

	exportPath := filepath.Join(t.TempDir(), "export.json")
	if _, err := run(t, url, "workflows", "export", wf.ID, "-o", exportPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := run(t, "", "validate", exportPath); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := run(t, url, "workflows", "import", exportPath, "--name", "Copy"); err != nil {
		t.Fatalf("import: %v", err)
	}

	if _, err := run(t, url, "workflows", "show", "missing"); err == nil {
		t.Error("expected an error for a missing workflow")
	}
}

func TestValidateRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"metadata":{"version":"2.0"},"flow":{}}`), 0o644)

	out, err := run(t, "", "validate", path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	var res validateResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Valid || len(res.Errors) == 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestSampleAgainstNodeSchema(t *testing.T) {
	url := setupTestServer(t)

	out, err := run(t, url, "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	var wf workflow.Workflow
	json.Unmarshal([]byte(out), &wf)

	out, err = run(t, url, "sample", wf.ID, "website-input", "--schema")
	if err != nil {
		t.Fatalf("sample --schema: %v", err)
	}
	var js map[string]any
	if err := json.Unmarshal([]byte(out), &js); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if js["type"] != "object" {
		t.Errorf("schema type = %v, want object", js["type"])
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	os.WriteFile(good, []byte(`{"WebsiteUrl3":"https://example.com"}`), 0o644)
	out, err = run(t, url, "sample", wf.ID, "website-input", good)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	var res sampleResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !res.Valid {
		t.Errorf("unexpected result: %+v", res)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"WebsiteUrl3":42}`), 0o644)
	out, err = run(t, url, "sample", wf.ID, "website-input", bad)
	if err == nil {
		t.Fatal("expected a mismatch")
	}
	res = sampleResult{}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Valid || len(res.Errors) == 0 {
		t.Errorf("unexpected result: %+v", res)
	}

	if _, err := run(t, url, "sample", wf.ID, "website-verification"); err == nil {
		t.Error("expected an error for a missing payload")
	}
}

func TestPruneFields(t *testing.T) {
	url := setupTestServer(t)

	canvas := `{
		"nodes": [
			{"id":"raw","type":"dataNode","position":{"x":0,"y":0},
			 "data":{"name":"Company","type":"Raw","dataType":"JSON","source":null,"schema":{"name":"string"}}},
			{"id":"check","type":"processNode","position":{"x":0,"y":0},
			 "data":{"name":"Check","processType":"main-process","inputs":["raw"],
			         "selectedFields":{"raw":{"name":true,"phone":true}}}}
		],
		"edges": [{"id":"e1","source":"raw","target":"check"}]
	}`
	path := filepath.Join(t.TempDir(), "canvas.json")
	os.WriteFile(path, []byte(canvas), 0o644)

	out, err := run(t, url, "workflows", "create", "Stale", "--canvas", path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var wf workflow.Workflow
	json.Unmarshal([]byte(out), &wf)

	out, err = run(t, url, "workflows", "prune-fields", wf.ID)
	if err != nil {
		t.Fatalf("prune-fields: %v", err)
	}
	var res pruneResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Removed != 1 || res.Workflow.Version != 2 {
		t.Errorf("removed %d at version %d, want 1 at 2", res.Removed, res.Workflow.Version)
	}
	for _, n := range res.Workflow.Canvas.Nodes {
		if n.ID != "check" {
			continue
		}
		sel := n.Process.SelectedFields["raw"]
		if !sel.Selected("name") || sel.Selected("phone") {
			t.Errorf("selection = %v, want only name", sel)
		}
	}

	out, err = run(t, url, "workflows", "prune-fields", wf.ID)
	if err != nil {
		t.Fatalf("second prune-fields: %v", err)
	}
	res = pruneResult{}
	json.Unmarshal([]byte(out), &res)
	if res.Removed != 0 || res.Workflow.Version != 2 {
		t.Errorf("second pass removed %d at version %d, want 0 at 2", res.Removed, res.Workflow.Version)
	}
}
