// Package api implements the v2 HTTP API: project catalogs, the group
// tree, structural mutations, versions, and OpenAPI imports.
package api

import (
	"net/http"

	"github.com/apiforge-io/apiforge/internal/server"
)

// RegisterRoutes attaches the v2 API handlers to the mux.
func RegisterRoutes(mux *http.ServeMux, srv server.Server) {
	mux.Handle("/api/v2/projects", ProjectsHandler(srv))
	mux.Handle("/api/v2/projects/", ProjectResourceHandler(srv))
}

// ProjectResourceHandler routes requests under
// /api/v2/projects/{projectID}/... to the section handlers.
func ProjectResourceHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
		}

		segments := resourceSegments(r.URL.Path, "/api/v2/projects/")
		if len(segments) == 0 {
			http.Error(w, "Project id required", http.StatusBadRequest)
			return
		}

		projectID, err := parseID(segments[0])
		if err != nil {
			respondError(w, srv, logArgs, err)
			return
		}
		rest := segments[1:]

		if len(rest) == 0 {
			projectHandler(srv, w, r, logArgs, projectID)
			return
		}

		switch rest[0] {
		case "tree":
			treeHandler(srv, w, r, logArgs, projectID)
		case "groups":
			groupsHandler(srv, w, r, logArgs, projectID, rest[1:])
		case "sort":
			sortHandler(srv, w, r, logArgs, projectID)
		case "apis":
			apisHandler(srv, w, r, logArgs, projectID, rest[1:])
		case "import":
			importHandler(srv, w, r, logArgs, projectID, rest[1:])
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	})
}
