package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstoreJSON = `{
  "openapi": "3.0.0",
  "info": {"title": "Petstore", "version": "1.2.0"},
  "paths": {
    "/pets": {
      "get": {
        "summary": "List pets",
        "tags": ["Pets"],
        "responses": {
          "200": {
            "description": "ok",
            "content": {
              "application/json": {
                "schema": {"type": "array", "items": {"type": "object"}}
              }
            }
          }
        }
      },
      "post": {
        "operationId": "createPet",
        "tags": ["Pets"],
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {"type": "object", "properties": {"name": {"type": "string"}}}
            }
          }
        },
        "responses": {"201": {"description": "created"}}
      }
    },
    "/health": {
      "get": {
        "responses": {"200": {"description": "ok"}}
      }
    }
  }
}`

func TestParse(t *testing.T) {
	t.Run("normalizes operations ordered by path then method", func(t *testing.T) {
		doc, err := Parse([]byte(petstoreJSON))
		require.NoError(t, err)

		assert.Equal(t, "Petstore", doc.Title)
		assert.Equal(t, "1.2.0", doc.Version)
		require.Len(t, doc.Operations, 3)

		assert.Equal(t, "/health", doc.Operations[0].Path)
		assert.Equal(t, "GET", doc.Operations[0].Method)
		assert.Equal(t, "/pets", doc.Operations[1].Path)
		assert.Equal(t, "GET", doc.Operations[1].Method)
		assert.Equal(t, "/pets", doc.Operations[2].Path)
		assert.Equal(t, "POST", doc.Operations[2].Method)
	})

	t.Run("name falls back from summary to operationId to method+path", func(t *testing.T) {
		doc, err := Parse([]byte(petstoreJSON))
		require.NoError(t, err)

		assert.Equal(t, "GET /health", doc.Operations[0].Name)
		assert.Equal(t, "List pets", doc.Operations[1].Name)
		assert.Equal(t, "createPet", doc.Operations[2].Name)
	})

	t.Run("extracts request and response shapes", func(t *testing.T) {
		doc, err := Parse([]byte(petstoreJSON))
		require.NoError(t, err)

		listPets := doc.Operations[1]
		assert.Nil(t, listPets.RequestShape)
		assert.Contains(t, string(listPets.ResponseShape), `"array"`)

		createPet := doc.Operations[2]
		assert.Contains(t, string(createPet.RequestShape), `"name"`)
		assert.Nil(t, createPet.ResponseShape)
	})

	t.Run("carries tags", func(t *testing.T) {
		doc, err := Parse([]byte(petstoreJSON))
		require.NoError(t, err)
		assert.Equal(t, []string{"Pets"}, doc.Operations[1].Tags)
		assert.Empty(t, doc.Operations[0].Tags)
	})

	t.Run("accepts yaml", func(t *testing.T) {
		yaml := "openapi: 3.0.0\ninfo:\n  title: Mini\n  version: 0.1.0\npaths:\n  /ping:\n    get:\n      responses:\n        '200':\n          description: ok\n"
		doc, err := Parse([]byte(yaml))
		require.NoError(t, err)
		assert.Equal(t, "Mini", doc.Title)
		require.Len(t, doc.Operations, 1)
		assert.Equal(t, "/ping", doc.Operations[0].Path)
	})

	t.Run("malformed content is a parse error", func(t *testing.T) {
		_, err := Parse([]byte(`{"not": "openapi"`))
		assert.ErrorIs(t, err, ErrParse)
	})

	t.Run("empty content is a parse error", func(t *testing.T) {
		_, err := Parse(nil)
		assert.ErrorIs(t, err, ErrParse)
	})
}
