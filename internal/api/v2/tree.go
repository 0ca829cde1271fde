package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/apiforge-io/apiforge/internal/server"
	"github.com/apiforge-io/apiforge/pkg/catalog"
)

// treeHandler serves the bounded-depth, filtered subtree read.
func treeHandler(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	if r.Method != "GET" {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := catalog.SubtreeQuery{
		ProjectID: projectID,
		Method:    r.URL.Query().Get("apiMethod"),
		Status:    r.URL.Query().Get("apiStatus"),
		Search:    r.URL.Query().Get("search"),
		Sort:      r.URL.Query().Get("sort"),
	}

	if v := r.URL.Query().Get("root"); v != "" {
		rootID, err := parseID(v)
		if err != nil {
			respondError(w, srv, logArgs, err)
			return
		}
		q.RootID = &rootID
	}

	var err error
	if q.MaxDepth, err = queryInt(r, "maxDepth"); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	if q.APILimitPerGroup, err = queryInt(r, "apiLimitPerGroup"); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	q.IncludeCurrentVersion = r.URL.Query().Get("includeCurrentVersion") == "true"

	subtree, err := catalog.GetSubtree(srv.DB.WithContext(r.Context()), q)
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, subtree)
}

// queryInt parses an optional integer query parameter, 0 when absent.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, catalog.NewValidationError(name,
			fmt.Sprintf("invalid integer %q", v))
	}
	return n, nil
}
