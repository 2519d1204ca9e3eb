// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 InnovaNet Contributors

// Package schema generates JSON Schemas from Go structs and validates YAML
// documents against them.
package schema

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Document describes a YAML document type.
type Document struct {
	// ID is the schema $id, also used as the resource name when compiling.
	ID          string
	Title       string
	Description string
	// Type is a pointer to the zero value of the document struct.
	Type any
}

// Generate reflects the document struct into an indented JSON Schema.
func (d Document) Generate() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(d.Type)
	s.ID = jsonschema.ID(d.ID)
	s.Title = d.Title
	s.Description = d.Description

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("schema", d.ID).Wrap(err)
	}
	return data, nil
}

// Validator checks YAML documents against a Document schema. The schema is
// compiled on first use.
type Validator struct {
	doc     Document
	once    sync.Once
	schema  *jschema.Schema
	initErr error
}

// NewValidator creates a Validator for doc.
func NewValidator(doc Document) *Validator {
	return &Validator{doc: doc}
}

// Validate parses data as YAML and validates it.
func (v *Validator) Validate(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return oops.Code("SCHEMA_EMPTY_DOCUMENT").With("schema", v.doc.ID).Errorf("document is empty")
	}

	var parsed any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return oops.Code("SCHEMA_INVALID_YAML").With("schema", v.doc.ID).Wrap(err)
	}

	compiled, err := v.compiled()
	if err != nil {
		return err
	}
	if err := compiled.Validate(toJSONTypes(parsed)); err != nil {
		return oops.Code("SCHEMA_VALIDATION_FAILED").With("schema", v.doc.ID).Wrap(err)
	}
	return nil
}

func (v *Validator) compiled() (*jschema.Schema, error) {
	v.once.Do(func() {
		raw, err := v.doc.Generate()
		if err != nil {
			v.initErr = err
			return
		}
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			v.initErr = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", v.doc.ID).Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(v.doc.ID, parsed); err != nil {
			v.initErr = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", v.doc.ID).Wrap(err)
			return
		}
		v.schema, err = c.Compile(v.doc.ID)
		if err != nil {
			v.initErr = oops.Code("SCHEMA_COMPILE_FAILED").With("schema", v.doc.ID).Wrap(err)
		}
	})
	return v.schema, v.initErr
}

// toJSONTypes rewrites values yaml.v3 produces into types the validator accepts.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONTypes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONTypes(item)
		}
		return out
	case string, int, int64, float64, bool, nil:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}
