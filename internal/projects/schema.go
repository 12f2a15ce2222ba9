package projects

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed project.schema.json
var projectSchemaJSON string

const projectSchemaID = "https://renovo.ca/schemas/project.create.json"

// ErrValidation can be used with errors.Is to detect rejected submissions.
var ErrValidation = errors.New("validation failed")

// Validator checks project submissions against the embedded JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat = true
	if err := c.AddResource(projectSchemaID, strings.NewReader(projectSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add project schema: %w", err)
	}
	schema, err := c.Compile(projectSchemaID)
	if err != nil {
		return nil, fmt.Errorf("compile project schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate performs a hard reject of payloads that do not match the schema.
func (v *Validator) Validate(raw json.RawMessage) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}
	return nil
}

// describe flattens a schema error to its most specific causes.
func describe(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	leaves := leafCauses(verr)
	msgs := make([]string, 0, len(leaves))
	for _, l := range leaves {
		loc := l.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msgs = append(msgs, loc+": "+l.Message)
	}
	return strings.Join(msgs, "; ")
}

func leafCauses(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leafCauses(c)...)
	}
	return out
}
