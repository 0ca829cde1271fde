package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/apiforge-io/apiforge/internal/server"
	"github.com/apiforge-io/apiforge/pkg/catalog"
	"github.com/apiforge-io/apiforge/pkg/openapi"
)

// decodeRequest decodes a JSON request body into v.
func decodeRequest(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("error decoding request body: %w", err)
	}
	return nil
}

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, srv server.Server, logArgs []any, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.Logger.Error("error encoding response",
			append([]any{"error", err}, logArgs...)...)
	}
}

// respondError maps an engine error onto an HTTP status. Validation
// failures reject before persistence; conflicts are retryable.
func respondError(w http.ResponseWriter, srv server.Server, logArgs []any, err error) {
	var (
		status  int
		message string
	)

	var validationErr *catalog.ValidationError
	var ozzoErrs validation.Errors

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
		message = validationErr.Error()
	case errors.As(err, &ozzoErrs):
		status = http.StatusUnprocessableEntity
		message = fmt.Sprintf("validation error: %v", ozzoErrs)
	case errors.Is(err, catalog.ErrNotFound):
		status = http.StatusNotFound
		message = "Resource not found"
	case errors.Is(err, catalog.ErrInvalidParent):
		status = http.StatusBadRequest
		message = "Invalid parent"
	case errors.Is(err, catalog.ErrNotEmpty):
		status = http.StatusBadRequest
		message = "Group is not empty"
	case errors.Is(err, catalog.ErrConflict):
		status = http.StatusConflict
		message = "Conflicting concurrent change, retry the request"
	case errors.Is(err, openapi.ErrParse):
		status = http.StatusBadRequest
		message = "Error parsing OpenAPI document"
	default:
		status = http.StatusInternalServerError
		message = "Internal server error"
	}

	if status == http.StatusInternalServerError {
		srv.Logger.Error("request failed",
			append([]any{"error", err}, logArgs...)...)
	} else {
		srv.Logger.Warn("request rejected",
			append([]any{"error", err, "status", status}, logArgs...)...)
	}

	http.Error(w, message, status)
}

// resourceSegments splits the URL path after a prefix into its
// non-empty segments.
func resourceSegments(urlPath, prefix string) []string {
	rest := strings.TrimPrefix(urlPath, prefix)
	parts := strings.Split(rest, "/")
	var segments []string
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// parseID parses a decimal resource id from a path segment.
func parseID(segment string) (uint, error) {
	id, err := strconv.ParseUint(segment, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid resource id %q: %w", segment, catalog.ErrNotFound)
	}
	return uint(id), nil
}

// OptionalID distinguishes an absent id field from an explicit null.
// Move requests use it: omission keeps the current parent, null targets
// the forest root.
type OptionalID struct {
	Set   bool
	Value *uint
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v uint
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
