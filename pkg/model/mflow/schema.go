//nolint:revive // exported
package mflow

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaURL = "flow-v1.json"

const flowSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "trigger": {"type": "string"},
    "componentId": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "config": {"type": "object"},
          "failurePolicy": {"enum": ["stop", "continue"]},
          "position": {
            "type": "object",
            "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "id": {"type": "string"},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "branch": {"type": "string"}
        }
      }
    },
    "variables": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "enabled": {"type": "boolean"},
          "description": {"type": "string"}
        }
      }
    }
  }
}`

var (
	compileOnce    sync.Once
	compiledSchema *sjsonschema.Schema
	compileErr     error
)

func schema() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := sjsonschema.UnmarshalJSON(strings.NewReader(flowSchema))
		if err != nil {
			compileErr = fmt.Errorf("parse flow schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add flow schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// ValidateSchema checks the raw document shape before it is decoded into
// typed structs. YAML input is normalised through JSON first.
func ValidateSchema(data []byte, format Format) error {
	sch, err := schema()
	if err != nil {
		return err
	}

	raw := data
	if format == FormatYAML {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("decode yaml flow: %w", err)
		}
		raw, err = json.Marshal(generic)
		if err != nil {
			return fmt.Errorf("normalise yaml flow: %w", err)
		}
	}

	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode json flow: %w", err)
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *sjsonschema.ValidationError
	if errors.As(err, &verr) {
		return schemaErrors(verr)
	}
	return err
}

func schemaErrors(verr *sjsonschema.ValidationError) ValidationErrors {
	var errs ValidationErrors
	var walk func(e *sjsonschema.ValidationError)
	walk = func(e *sjsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			errs = append(errs, &ValidationError{
				Path:    "/" + strings.Join(e.InstanceLocation, "/"),
				Message: e.Error(),
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return errs
}
