package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/bookgen/internal/model"
)

// Stage schemas describe the canonical records the normalizers emit, not the
// raw model output. Validation runs after normalization, and only rejects in
// strict mode; lenient runs rely on the normalizers' defaults instead.

const specSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"subtitle": {"type": "string"},
		"audience": {"type": "array", "items": {"type": "string"}},
		"goals": {"type": "array", "items": {"type": "string"}},
		"constraints": {"type": "array", "items": {"type": "string"}},
		"tone": {"type": "string"}
	},
	"required": ["title", "audience", "goals", "constraints"]
}`

const tocSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"properties": {
			"number": {"type": "integer", "minimum": 1},
			"title": {"type": "string", "minLength": 1},
			"target_pages": {"type": "integer", "minimum": 1}
		},
		"required": ["number", "title", "target_pages"]
	}
}`

const planSchema = `{
	"type": "object",
	"properties": {
		"number": {"type": "integer", "minimum": 1},
		"title": {"type": "string", "minLength": 1},
		"objectives": {"type": "array", "items": {"type": "string"}},
		"key_ideas": {"type": "array", "items": {"type": "string"}},
		"image_prompts": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"purpose": {"type": "string", "minLength": 1},
					"prompt": {"type": "string", "minLength": 1}
				},
				"required": ["purpose", "prompt"]
			}
		}
	},
	"required": ["number", "title", "objectives", "key_ideas", "image_prompts"]
}`

type validator struct {
	strict  bool
	schemas map[model.Stage]*jsonschema.Schema
}

func newValidator(strict bool) (*validator, error) {
	v := &validator{strict: strict, schemas: map[model.Stage]*jsonschema.Schema{}}
	if !strict {
		return v, nil
	}
	for stage, raw := range map[model.Stage]string{
		model.StageSpec: specSchema,
		model.StageTOC:  tocSchema,
		model.StagePlan: planSchema,
	} {
		compiler := jsonschema.NewCompiler()
		name := string(stage) + ".json"
		if err := compiler.AddResource(name, strings.NewReader(raw)); err != nil {
			return nil, eris.Wrapf(err, "pipeline: loading %s schema", stage)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: compiling %s schema", stage)
		}
		v.schemas[stage] = schema
	}
	return v, nil
}

// checkRecord validates a normalized stage record. In lenient mode it always
// passes. The record goes through a JSON round-trip so the schema sees the
// wire shape, not Go structs.
func (v *validator) checkRecord(stage model.Stage, record any) error {
	if !v.strict {
		return nil
	}
	schema, ok := v.schemas[stage]
	if !ok {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return &ValidationError{Stage: stage, Err: err}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ValidationError{Stage: stage, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return &ValidationError{Stage: stage, Err: err}
	}
	return nil
}
