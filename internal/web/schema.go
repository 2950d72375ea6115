// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeoElevate Contributors

package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/samber/oops"

	"github.com/geoelevate/geoelevate/pkg/errutil"
)

// SchemaID is the $id of the generated request schema document.
const SchemaID = "https://geoelevate.dev/schemas/api.schema.json"

// Request body names, also used as $defs keys.
const (
	schemaSignup       = "SignupRequest"
	schemaLogin        = "LoginRequest"
	schemaScoreCreate  = "ScoreCreateRequest"
	schemaScoreMigrate = "ScoreMigrateRequest"
)

func requestTypes() map[string]any {
	return map[string]any{
		schemaSignup:       &SignupRequest{},
		schemaLogin:        &LoginRequest{},
		schemaScoreCreate:  &ScoreCreateRequest{},
		schemaScoreMigrate: &ScoreMigrateRequest{},
	}
}

func reflectRequest(v any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	return r.Reflect(v)
}

// GenerateSchema returns one JSON Schema document holding every request
// body under $defs.
func GenerateSchema() ([]byte, error) {
	defs := jsonschema.Definitions{}
	for name, v := range requestTypes() {
		s := reflectRequest(v)
		s.Version = ""
		defs[name] = s
	}

	doc := &jsonschema.Schema{
		Version:     jsonschema.Version,
		ID:          jsonschema.ID(SchemaID),
		Title:       "GeoElevate API requests",
		Description: "Request bodies accepted by the GeoElevate HTTP API",
		Definitions: defs,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").Wrap(err)
	}
	return data, nil
}

// validator checks request bodies against schemas reflected from the
// request structs.
type validator struct {
	schemas map[string]*jschema.Schema
}

func newValidator() (*validator, error) {
	c := jschema.NewCompiler()
	v := &validator{schemas: make(map[string]*jschema.Schema)}
	for name, typ := range requestTypes() {
		raw, err := json.Marshal(reflectRequest(typ))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		url := name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		sch, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("schema", name).Wrap(err)
		}
		v.schemas[name] = sch
	}
	return v, nil
}

// check parses body and validates it against the named schema. Failures are
// InvalidInput with a message naming the offending field.
func (v *validator) check(name string, body []byte) error {
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return oops.Code("REQUEST_MALFORMED").
			Wrap(errutil.Public(errutil.ErrInvalidInput, "request body must be valid JSON"))
	}
	sch, ok := v.schemas[name]
	if !ok {
		return oops.Code("SCHEMA_UNKNOWN").With("schema", name).Errorf("no schema registered")
	}
	if err := sch.Validate(inst); err != nil {
		return oops.Code("REQUEST_SCHEMA_INVALID").
			With("schema", name).
			Wrap(errutil.Public(errutil.ErrInvalidInput, describeValidation(err)))
	}
	return nil
}

func describeValidation(err error) string {
	ve, ok := err.(*jschema.ValidationError)
	if !ok {
		return "invalid request body"
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if req, ok := ve.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		return fmt.Sprintf("missing field: %s", strings.Join(joinPath(ve.InstanceLocation, req.Missing[0]), "."))
	}
	if len(ve.InstanceLocation) == 0 {
		return "invalid request body"
	}
	return fmt.Sprintf("invalid value for %s", strings.Join(ve.InstanceLocation, "."))
}

func joinPath(base []string, leaf string) []string {
	out := make([]string, 0, len(base)+1)
	out = append(out, base...)
	return append(out, leaf)
}
