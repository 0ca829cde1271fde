package api

import (
	"fmt"
	"net/http"

	"github.com/apiforge-io/apiforge/internal/server"
	"github.com/apiforge-io/apiforge/pkg/catalog"
	"github.com/apiforge-io/apiforge/pkg/openapi"
)

// ImportPostRequest carries an OpenAPI document to reconcile, either
// inline or by URL.
type ImportPostRequest struct {
	// Content is the raw OpenAPI document (JSON or YAML). Exactly one of
	// Content and URL must be set.
	Content string `json:"content,omitempty"`
	URL     string `json:"url,omitempty"`

	TargetGroupID       *uint  `json:"targetGroupId,omitempty"`
	ConflictStrategy    string `json:"conflictStrategy,omitempty"`
	CreateMissingGroups *bool  `json:"createMissingGroups,omitempty"`
}

// importHandler routes import preview and execute requests.
func importHandler(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint, segments []string,
) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch {
	case len(segments) == 0:
		executeImport(srv, w, r, logArgs, projectID)
	case len(segments) == 1 && segments[0] == "preview":
		previewImport(srv, w, r, logArgs, projectID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func previewImport(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	req, doc, ok := decodeImport(srv, w, r, logArgs)
	if !ok {
		return
	}

	plan, err := srv.Reconciler.Plan(srv.DB.WithContext(r.Context()),
		importRequest(projectID, req), doc)
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, plan)
}

func executeImport(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	req, doc, ok := decodeImport(srv, w, r, logArgs)
	if !ok {
		return
	}

	// Preview may default the strategy, but a committing import must
	// state one explicitly.
	if req.ConflictStrategy == "" {
		respondError(w, srv, logArgs,
			catalog.NewValidationError("conflictStrategy", "cannot be blank"))
		return
	}

	result, err := srv.Reconciler.Execute(srv.DB.WithContext(r.Context()),
		importRequest(projectID, req), doc)
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, result)
}

// decodeImport reads the request and produces the parsed document. URL
// documents are fetched here, before any transaction starts, so remote
// latency never holds database locks.
func decodeImport(
	srv server.Server, w http.ResponseWriter, r *http.Request, logArgs []any,
) (ImportPostRequest, *openapi.Document, bool) {
	req := ImportPostRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return req, nil, false
	}

	if (req.Content == "") == (req.URL == "") {
		respondError(w, srv, logArgs,
			catalog.NewValidationError("content",
				"exactly one of content and url must be provided"))
		return req, nil, false
	}

	content := []byte(req.Content)
	if req.URL != "" {
		fetched, err := openapi.Fetch(r.Context(), req.URL)
		if err != nil {
			respondError(w, srv, logArgs, err)
			return req, nil, false
		}
		content = fetched
	}

	doc, err := openapi.Parse(content)
	if err != nil {
		respondError(w, srv, logArgs, err)
		return req, nil, false
	}
	return req, doc, true
}

func importRequest(projectID uint, req ImportPostRequest) openapi.ImportRequest {
	createMissing := true
	if req.CreateMissingGroups != nil {
		createMissing = *req.CreateMissingGroups
	}
	strategy := openapi.ConflictStrategy(req.ConflictStrategy)
	if strategy == "" {
		strategy = openapi.StrategySkip
	}
	return openapi.ImportRequest{
		ProjectID:           projectID,
		TargetGroupID:       req.TargetGroupID,
		Strategy:            strategy,
		CreateMissingGroups: createMissing,
	}
}
