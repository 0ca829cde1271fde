package api

import (
	"fmt"
	"net/http"

	"github.com/apiforge-io/apiforge/internal/server"
	"github.com/apiforge-io/apiforge/pkg/catalog"
)

// SortPostRequest reorders one sibling set: either groups sharing a
// parent or APIs of one group.
type SortPostRequest struct {
	Items []catalog.SortItem `json:"items"`
}

// sortHandler applies a batch sibling reorder.
func sortHandler(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	if r.Method != "POST" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req := SortPostRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}

	if err := catalog.SortItems(srv.DB.WithContext(r.Context()), projectID, req.Items); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("sibling set reordered",
		append([]any{
			"project_id", projectID,
			"items", len(req.Items),
		}, logArgs...)...)
	w.WriteHeader(http.StatusNoContent)
}
