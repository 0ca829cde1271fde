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

// GroupsPostRequest is the request to create a group.
type GroupsPostRequest struct {
	Name        string  `json:"name"`
	ParentID    *uint   `json:"parentId,omitempty"`
	Description *string `json:"description,omitempty"`
	SortOrder   *int    `json:"sortOrder,omitempty"`
}

// Validate validates the request.
func (req GroupsPostRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&req.SortOrder, validation.Min(0)),
	)
}

// GroupPatchRequest is the request to update a group's own fields.
type GroupPatchRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	SortOrder   *int    `json:"sortOrder,omitempty"`
}

// Validate validates the request.
func (req GroupPatchRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Length(1, 128)),
		validation.Field(&req.SortOrder, validation.Min(0)),
	)
}

// GroupMoveRequest reparents and/or reorders a group. Omitting
// newParentId keeps the current parent; an explicit null moves the
// group to the forest root.
type GroupMoveRequest struct {
	NewParentID OptionalID `json:"newParentId"`
	SortOrder   *int       `json:"sortOrder,omitempty"`
}

// groupsHandler routes /projects/{id}/groups requests.
func groupsHandler(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint, segments []string,
) {
	switch len(segments) {
	case 0:
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		createGroup(srv, w, r, logArgs, projectID)

	case 1:
		groupID, err := parseID(segments[0])
		if err != nil {
			respondError(w, srv, logArgs, err)
			return
		}
		switch r.Method {
		case "GET":
			getGroup(srv, w, r, logArgs, projectID, groupID)
		case "PATCH":
			updateGroup(srv, w, r, logArgs, projectID, groupID)
		case "DELETE":
			deleteGroup(srv, w, r, logArgs, projectID, groupID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case 2:
		if segments[1] != "move" || r.Method != "POST" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		groupID, err := parseID(segments[0])
		if err != nil {
			respondError(w, srv, logArgs, err)
			return
		}
		moveGroup(srv, w, r, logArgs, projectID, groupID)

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func createGroup(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID uint,
) {
	req := GroupsPostRequest{}
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

	var group *models.Group
	err := srv.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		order := 0
		if req.SortOrder != nil {
			order = *req.SortOrder
		} else {
			next, err := catalog.NextGroupSortOrder(tx, projectID, req.ParentID)
			if err != nil {
				return err
			}
			order = next
		}

		group = &models.Group{
			ProjectID:   projectID,
			ParentID:    req.ParentID,
			Name:        req.Name,
			Description: req.Description,
			SortOrder:   order,
		}
		if err := group.Create(tx); err != nil {
			return notFoundToInvalidParent(err)
		}
		return nil
	})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("group created",
		append([]any{"group_id", group.ID, "project_id", projectID}, logArgs...)...)
	respondJSON(w, srv, logArgs, http.StatusCreated, group)
}

func getGroup(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, groupID uint,
) {
	group := &models.Group{}
	if err := group.Get(srv.DB.WithContext(r.Context()), groupID); err != nil ||
		group.ProjectID != projectID {
		respondError(w, srv, logArgs,
			fmt.Errorf("group %d: %w", groupID, catalog.ErrNotFound))
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, group)
}

func updateGroup(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, groupID uint,
) {
	req := GroupPatchRequest{}
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

	group := &models.Group{}
	err := srv.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := group.Get(tx, groupID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("group %d: %w", groupID, catalog.ErrNotFound)
			}
			return err
		}
		if group.ProjectID != projectID {
			return fmt.Errorf("group %d: %w", groupID, catalog.ErrNotFound)
		}

		if req.Name != nil {
			group.Name = *req.Name
		}
		if req.Description != nil {
			group.Description = req.Description
		}
		if req.SortOrder != nil {
			group.SortOrder = *req.SortOrder
		}
		return group.Update(tx)
	})
	if err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	respondJSON(w, srv, logArgs, http.StatusOK, group)
}

func deleteGroup(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, groupID uint,
) {
	cascade := r.URL.Query().Get("cascade") == "true"

	if err := catalog.DeleteGroup(srv.DB.WithContext(r.Context()), projectID, groupID, cascade); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	srv.Logger.Info("group deleted",
		append([]any{
			"group_id", groupID,
			"project_id", projectID,
			"cascade", cascade,
		}, logArgs...)...)
	w.WriteHeader(http.StatusNoContent)
}

func moveGroup(
	srv server.Server, w http.ResponseWriter, r *http.Request,
	logArgs []any, projectID, groupID uint,
) {
	req := GroupMoveRequest{}
	if err := decodeRequest(r, &req); err != nil {
		srv.Logger.Warn("error decoding request",
			append([]any{"error", err}, logArgs...)...)
		http.Error(w, fmt.Sprintf("Bad request: %q", err), http.StatusBadRequest)
		return
	}

	parent := catalog.KeepParent
	if req.NewParentID.Set {
		parent = catalog.ParentRef{ID: req.NewParentID.Value}
	}

	if err := catalog.MoveGroup(srv.DB.WithContext(r.Context()), projectID, groupID, parent, req.SortOrder); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}

	group := &models.Group{}
	if err := group.Get(srv.DB.WithContext(r.Context()), groupID); err != nil {
		respondError(w, srv, logArgs, err)
		return
	}
	respondJSON(w, srv, logArgs, http.StatusOK, group)
}

// notFoundToInvalidParent converts the model layer's record-not-found
// on a parent check into the API taxonomy.
func notFoundToInvalidParent(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%v: %w", err, catalog.ErrInvalidParent)
	}
	return err
}
