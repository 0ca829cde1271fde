// Package openapi parses OpenAPI 3.x documents into a normalized
// operation list and reconciles those operations against a project's
// existing API catalog under a caller-selected conflict strategy.
package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/apiforge-io/apiforge/pkg/models"
)

// ErrParse is returned for malformed documents and unreachable URLs.
// A parse failure aborts the whole import with zero side effects.
var ErrParse = errors.New("openapi parse error")

// Operation is one normalized operation of a parsed document.
type Operation struct {
	Path   string   `json:"path"`
	Method string   `json:"method"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags,omitempty"`

	RequestShape  models.JSON `json:"requestShape,omitempty"`
	ResponseShape models.JSON `json:"responseShape,omitempty"`
}

// Document is the normalized form of a parsed OpenAPI document.
type Document struct {
	Title      string      `json:"title"`
	Version    string      `json:"version"`
	Operations []Operation `json:"operations"`
}

// Parse parses an OpenAPI 3.x document (JSON or YAML) into a normalized
// operation list, ordered by path then method for determinism.
func Parse(content []byte) (*Document, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty document: %w", ErrParse)
	}

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(content)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrParse)
	}
	if spec.Paths == nil {
		return nil, fmt.Errorf("document has no paths: %w", ErrParse)
	}

	doc := &Document{}
	if spec.Info != nil {
		doc.Title = spec.Info.Title
		doc.Version = spec.Info.Version
	}

	paths := spec.Paths.Map()
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, method := range models.APIMethods {
			op := operationForMethod(item, method)
			if op == nil {
				continue
			}
			doc.Operations = append(doc.Operations, normalizeOperation(path, method, op))
		}
	}

	return doc, nil
}

func operationForMethod(item *openapi3.PathItem, method string) *openapi3.Operation {
	switch method {
	case models.APIMethodGet:
		return item.Get
	case models.APIMethodPost:
		return item.Post
	case models.APIMethodPut:
		return item.Put
	case models.APIMethodDelete:
		return item.Delete
	case models.APIMethodPatch:
		return item.Patch
	case models.APIMethodHead:
		return item.Head
	case models.APIMethodOptions:
		return item.Options
	}
	return nil
}

func normalizeOperation(path, method string, op *openapi3.Operation) Operation {
	name := strings.TrimSpace(op.Summary)
	if name == "" {
		name = op.OperationID
	}
	if name == "" {
		name = fmt.Sprintf("%s %s", method, path)
	}

	return Operation{
		Path:          path,
		Method:        method,
		Name:          name,
		Tags:          op.Tags,
		RequestShape:  requestShape(op),
		ResponseShape: responseShape(op),
	}
}

// requestShape extracts the JSON request body schema, if any.
func requestShape(op *openapi3.Operation) models.JSON {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return marshalSchema(media.Schema)
}

// responseShape extracts the schema of the first 2xx JSON response.
func responseShape(op *openapi3.Operation) models.JSON {
	if op.Responses == nil {
		return nil
	}

	responses := op.Responses.Map()
	codes := make([]string, 0, len(responses))
	for code := range responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		media := ref.Value.Content.Get("application/json")
		if media == nil || media.Schema == nil {
			continue
		}
		return marshalSchema(media.Schema)
	}
	return nil
}

func marshalSchema(ref *openapi3.SchemaRef) models.JSON {
	raw, err := json.Marshal(ref)
	if err != nil {
		return nil
	}
	return models.JSON(raw)
}
