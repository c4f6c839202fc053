package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kaptinlin/jsonschema"
)

const draft2020 = "https://json-schema.org/draft/2020-12/schema"

// ToJSONSchema projects a descriptor onto an equivalent JSON Schema
// document. Objects do not require their properties, matching the way the
// canvas treats descriptors as documentation of a payload.
func ToJSONSchema(d *Descriptor) map[string]any {
	out := toJSONSchema(d)
	out["$schema"] = draft2020
	return out
}

func toJSONSchema(d *Descriptor) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	switch d.Kind {
	case KindArray:
		return map[string]any{"type": "array", "items": toJSONSchema(d.Items)}
	case KindObject:
		props := make(map[string]any, len(d.Properties))
		for _, p := range d.Properties {
			props[p.Name] = toJSONSchema(p.Value)
		}
		return map[string]any{"type": "object", "properties": props}
	default:
		if d.Type.Known() {
			return map[string]any{"type": string(d.Type)}
		}
		return map[string]any{}
	}
}

// SampleError reports why a sample payload does not fit a descriptor.
type SampleError struct {
	Details []string
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample does not match schema: %v", e.Details)
}

// ValidateSample checks a JSON payload against the shape d describes.
func ValidateSample(d *Descriptor, sample []byte) error {
	raw, err := json.Marshal(ToJSONSchema(d))
	if err != nil {
		return fmt.Errorf("marshal json schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(raw)
	if err != nil {
		return fmt.Errorf("compile json schema: %w", err)
	}

	var data interface{}
	if err := json.Unmarshal(sample, &data); err != nil {
		return &SampleError{Details: []string{err.Error()}}
	}

	result := compiled.Validate(data)
	if result.IsValid() {
		return nil
	}
	var details []string
	for _, detail := range result.Errors {
		details = append(details, detail.Message)
	}
	sort.Strings(details)
	return &SampleError{Details: details}
}
