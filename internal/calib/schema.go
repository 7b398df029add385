package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPoints is returned when a stored or supplied points document is malformed.
var ErrInvalidPoints = errors.New("invalid points")

const pointsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "definitions": {
    "point": {
      "type": "object",
      "required": ["x", "y"],
      "properties": {
        "x": {"type": "number"},
        "y": {"type": "number"}
      }
    }
  },
  "required": ["topLeft", "topRight", "bottomRight", "bottomLeft"],
  "properties": {
    "topLeft": {"$ref": "#/definitions/point"},
    "topRight": {"$ref": "#/definitions/point"},
    "bottomRight": {"$ref": "#/definitions/point"},
    "bottomLeft": {"$ref": "#/definitions/point"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// compiledSchema compiles the points schema once.
func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(pointsSchema))
	})
	return schema, schemaErr
}

// Decode validates a points document and returns the decoded corners.
func Decode(data []byte) (Points, error) {
	s, err := compiledSchema()
	if err != nil {
		return Points{}, fmt.Errorf("compile points schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Points{}, fmt.Errorf("%w: %v", ErrInvalidPoints, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Points{}, fmt.Errorf("%w: %s", ErrInvalidPoints, strings.Join(msgs, "; "))
	}
	var p Points
	if err := json.Unmarshal(data, &p); err != nil {
		return Points{}, fmt.Errorf("%w: %v", ErrInvalidPoints, err)
	}
	return p, nil
}

// Encode serializes points in the persisted wire shape.
func Encode(p Points) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
