package api

import (
	"errors"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/internal/server"
	"github.com/apiforge-io/apiforge/pkg/catalog"
	"github.com/apiforge-io/apiforge/pkg/models"
)

// ProjectsPostRequest is the request to create a project.
type ProjectsPostRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Validate validates the request.
func (req ProjectsPostRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 128)),
	)
}

// ProjectsHandler handles the project collection.
func ProjectsHandler(srv server.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logArgs := []any{
			"method", r.Method,
			"path", r.URL.Path,
		}

		switch r.Method {
		case "GET":
			projects, err := models.GetAllProjects(srv.DB.WithContext(r.Context()))
			if err != nil {
				respondError(w, srv, logArgs, err)
				return
			}
			respondJSON(w, srv, logArgs, http.StatusOK, projects)

		case "POST":
			req := ProjectsPostRequest{}
			if err := decodeRequest(r, &req); err != nil {
				srv.Logger.Warn("error decoding request",
					append([]any{"error", err}, logArgs...)...)
				http.Error(w, fmt.Sprintf("Bad request: %q", err),
					http.StatusBadRequest)
				return
			}
			if err := req.Validate(); err != nil {
				respondError(w, srv, logArgs, err)
				return
			}

			project := &models.Project{
				Name:        req.Name,
				Description: req.Description,
			}
			if err := project.Create(srv.DB.WithContext(r.Context())); err != nil {
				respondError(w, srv, logArgs, err)
				return
			}

			srv.Logger.Info("project created",
				append([]any{"project_id", project.ID}, logArgs...)...)
			respondJSON(w, srv, logArgs, http.StatusCreated, project)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

// projectHandler handles a single project resource.
func projectHandler(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	switch r.Method {
	case "GET":
		project := &models.Project{}
		if err := project.Get(srv.DB.WithContext(r.Context()), projectID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = fmt.Errorf("project %d: %w", projectID, catalog.ErrNotFound)
			}
			respondError(w, srv, logArgs, err)
			return
		}
		respondJSON(w, srv, logArgs, http.StatusOK, project)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
