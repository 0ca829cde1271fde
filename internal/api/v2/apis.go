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

// APIsPostRequest is the request to create an API definition.
type APIsPostRequest struct {
	GroupID   uint   `json:"groupId"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Method    string `json:"method"`
	Status    string `json:"status,omitempty"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}

// Validate validates the request.
func (req APIsPostRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.GroupID, validation.Required),
		validation.Field(&req.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&req.Path, validation.Required, validation.Length(1, 500)),
		validation.Field(&req.Method, validation.Required),
		validation.Field(&req.SortOrder, validation.Min(0)),
	)
}

// APIPatchRequest updates an API definition's own fields.
type APIPatchRequest struct {
	Name      *string `json:"name,omitempty"`
	Path      *string `json:"path,omitempty"`
	Method    *string `json:"method,omitempty"`
	Status    *string `json:"status,omitempty"`
	SortOrder *int    `json:"sortOrder,omitempty"`
}

// APIMoveRequest moves an API to another group and/or reorders it.
// Omitting newGroupId keeps the current group.
type APIMoveRequest struct {
	NewGroupID *uint `json:"newGroupId,omitempty"`
	SortOrder  *int  `json:"sortOrder,omitempty"`
}

// APICloneRequest duplicates an API into a target group. Empty override
// fields copy the source values.
type APICloneRequest struct {
	TargetGroupID uint   `json:"targetGroupId"`
	Name          string `json:"name,omitempty"`
	Path          string `json:"path,omitempty"`
	Method        string `json:"method,omitempty"`
}

// Validate validates the request.
func (req APICloneRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.TargetGroupID, validation.Required),
	)
}

// VersionsPostRequest publishes a new version for an API.
type VersionsPostRequest struct {
	VersionTag    string      `json:"version"`
	Summary       *string     `json:"summary,omitempty"`
	Changelog     *string     `json:"changelog,omitempty"`
	RequestShape  models.JSON `json:"requestShape,omitempty"`
	ResponseShape models.JSON `json:"responseShape,omitempty"`
}

// apisHandler routes /projects/{id}/apis requests.
func apisHandler(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint, segments []string,
) {
	switch len(segments) {
	case 0:
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		createAPI(srv, w, r, logArgs, projectID)

	case 1:
		apiID, err := parseID(segments[0])
		if err != nil {
			respondError(w, srv, logArgs, err)
			return
		}
		switch r.Method {
		case "GET":
			getAPI(srv, w, r, logArgs, projectID, apiID)
		case "PATCH":
			updateAPI(srv, w, r, logArgs, projectID, apiID)
		case "DELETE":
			deleteAPI(srv, w, r, logArgs, projectID, apiID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 2:
		apiID, err := parseID(segments[0])
		if err != nil {
			respondError(w, srv, logArgs, err)
			return
		}
		switch segments[1] {
		case "move":
			if r.Method != "POST" {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			moveAPI(srv, w, r, logArgs, projectID, apiID)
		case "clone":
			if r.Method != "POST" {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			cloneAPI(srv, w, r, logArgs, projectID, apiID)
		case "versions":
			switch r.Method {
			case "GET":
				listVersions(srv, w, r, logArgs, projectID, apiID)
			case "POST":
				publishVersion(srv, w, r, logArgs, projectID, apiID)
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func createAPI(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	req := APIsPostRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	var api *models.API
	err := srv.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if _, err := models.GetAPIByPathMethod(
			tx, projectID, req.Path, req.Method); err == nil {
			return fmt.Errorf("api %s %s already exists: %w",
				req.Method, req.Path, catalog.ErrConflict)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		order := 0
		if req.SortOrder != nil {
			order = *req.SortOrder
		} else {
			next, err := catalog.NextAPISortOrder(tx, req.GroupID)
			if err != nil {
				return err
			}
			order = next
		}

		api = &models.API{
			ProjectID: projectID,
			GroupID:   req.GroupID,
			Name:      req.Name,
			Path:      req.Path,
			Method:    req.Method,
			Status:    req.Status,
			SortOrder: order,
		}
		if err := api.Create(tx); err != nil {
			return notFoundToInvalidParent(err)
		}
		return nil
	})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("api created",
		append([]any{
			"api_id", api.ID,
			"project_id", projectID,
			"group_id", api.GroupID,
		}, logArgs...)...)
	respondJSON(w, srv, logArgs, http.StatusCreated, api)
}

func getAPI(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	api := &models.API{}
	if err := srv.DB.WithContext(r.Context()).Preload("CurrentVersion").
		First(api, apiID).Error; err != nil || api.ProjectID != projectID {
		respondError(w, srv, logArgs,
			fmt.Errorf("api %d: %w", apiID, catalog.ErrNotFound))
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, api)
}

func updateAPI(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	req := APIPatchRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}

	api := &models.API{}
	err := srv.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := api.Get(tx, apiID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("api %d: %w", apiID, catalog.ErrNotFound)
			}
			return err
		}
		if api.ProjectID != projectID {
			return fmt.Errorf("api %d: %w", apiID, catalog.ErrNotFound)
		}

		path := api.Path
		method := api.Method
		if req.Path != nil {
			path = *req.Path
		}
		if req.Method != nil {
			method = *req.Method
		}
		if path != api.Path || method != api.Method {
			match, err := models.GetAPIByPathMethod(tx, projectID, path, method)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if match != nil && match.ID != api.ID {
				return fmt.Errorf("api %s %s already exists: %w",
					method, path, catalog.ErrConflict)
			}
		}

		if req.Name != nil {
			api.Name = *req.Name
		}
		api.Path = path
		api.Method = method
		if req.Status != nil {
			api.Status = *req.Status
		}
		if req.SortOrder != nil {
			api.SortOrder = *req.SortOrder
		}
		return api.Update(tx)
	})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	respondJSON(w, srv, logArgs, http.StatusOK, api)
}

func deleteAPI(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	err := srv.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		api := &models.API{}
		if err := api.Get(tx, apiID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("api %d: %w", apiID, catalog.ErrNotFound)
			}
			return err
		}
		if api.ProjectID != projectID {
			return fmt.Errorf("api %d: %w", apiID, catalog.ErrNotFound)
		}

		if err := tx.Where("api_id = ?", api.ID).
			Delete(&models.APIVersion{}).Error; err != nil {
			return err
		}
		return api.Delete(tx)
	})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("api deleted",
		append([]any{"api_id", apiID, "project_id", projectID}, logArgs...)...)
	w.WriteHeader(http.StatusNoContent)
}

func moveAPI(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	req := APIMoveRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}

	if err := catalog.MoveAPI(srv.DB.WithContext(r.Context()), projectID, apiID, req.NewGroupID, req.SortOrder); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	api := &models.API{}
	if err := api.Get(srv.DB.WithContext(r.Context()), apiID); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, api)
}

func cloneAPI(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	req := APICloneRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	clone, err := catalog.CloneAPI(srv.DB.WithContext(r.Context()), projectID, apiID, req.TargetGroupID,
		catalog.CloneOptions{
			Name:   req.Name,
			Path:   req.Path,
			Method: req.Method,
		})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("api cloned",
		append([]any{
			"source_api_id", apiID,
			"clone_api_id", clone.ID,
			"project_id", projectID,
		}, logArgs...)...)
	respondJSON(w, srv, logArgs, http.StatusCreated, clone)
}

func listVersions(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	versions, err := catalog.ListVersions(srv.DB.WithContext(r.Context()), projectID, apiID)
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, versions)
}

func publishVersion(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, apiID uint,
) {
	req := VersionsPostRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}

	version, err := catalog.PublishVersion(srv.DB.WithContext(r.Context()), projectID, apiID,
		catalog.PublishVersionParams{
			VersionTag:    req.VersionTag,
			Summary:       req.Summary,
			Changelog:     req.Changelog,
			RequestShape:  req.RequestShape,
			ResponseShape: req.ResponseShape,
		})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("api version published",
		append([]any{
			"api_id", apiID,
			"project_id", projectID,
			"version", version.VersionTag,
		}, logArgs...)...)
	respondJSON(w, srv, logArgs, http.StatusCreated, version)
}
