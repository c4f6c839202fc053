package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alexcabrera/kybflow/internal/graph"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

const workflowNotFound = "Workflow not found"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	p, err := parseListParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.store.List(r.Context(), p)
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseListParams reads q, tags (repeated, tags[], or comma separated),
// archived, limit and offset.
func parseListParams(r *http.Request) (workflow.ListParams, error) {
	q := r.URL.Query()
	p := workflow.ListParams{
		Query:    q.Get("q"),
		Archived: q.Get("archived") == "true",
	}
	for _, key := range []string{"tags", "tags[]"} {
		for _, v := range q[key] {
			p.Tags = append(p.Tags, strings.Split(v, ",")...)
		}
	}
	for key, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, &paramError{key, raw}
		}
		*dst = n
	}
	return p, nil
}

type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.key + ": " + strconv.Quote(e.value)
}

type createRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tags        []string      `json:"tags"`
	Canvas      *graph.Canvas `json:"canvas"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Canvas == nil {
		writeError(w, http.StatusBadRequest, "Name and canvas are required")
		return
	}
	wf, err := s.store.Create(r.Context(), workflow.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Canvas:      req.Canvas,
	})
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req workflow.UpdateParams
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	wf, err := s.store.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Workflow archived successfully",
		"workflow": a,
	})
}

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	wf, err := s.store.Duplicate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "Source workflow not found")
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

type importRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
	ExportData  json.RawMessage `json:"exportData"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	wf, err := s.store.Import(r.Context(), workflow.ImportParams{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Document:    req.ExportData,
	})
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	versions, err := s.store.History(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, workflowNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid version")
		return
	}
	v, err := s.store.Version(r.Context(), r.PathValue("id"), n)
	if err != nil {
		s.fail(w, r, err, "Version not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}
