package exchange

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/kaptinlin/jsonschema"
)

//go:embed document.schema.json
var documentSchema []byte

// SupportedVersions is the range of format versions Validate accepts.
const SupportedVersions = "^1"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error

	constraint = mustConstraint(SupportedVersions)
)

func mustConstraint(c string) *semver.Constraints {
	v, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return v
}

// ValidationError lists why a document was rejected.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Details)
}

// Parse validates raw against the document schema and the supported format
// versions, then decodes it.
func Parse(raw []byte) (Document, error) {
	if err := Validate(raw); err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, &ValidationError{Message: "invalid export document", Details: []string{err.Error()}}
	}
	return doc, nil
}

// Validate checks raw without decoding it into a Document.
func Validate(raw []byte) error {
	compileOnce.Do(func() {
		compiled, compileErr = jsonschema.NewCompiler().Compile(documentSchema)
	})
	if compileErr != nil {
		return fmt.Errorf("compile document schema: %w", compileErr)
	}

	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return &ValidationError{Message: "invalid export document", Details: []string{err.Error()}}
	}

	result := compiled.Validate(data)
	if !result.IsValid() {
		var details []string
		for _, detail := range result.Errors {
			details = append(details, detail.Message)
		}
		sort.Strings(details)
		return &ValidationError{Message: "export document does not match format", Details: details}
	}

	return checkVersion(data)
}

func checkVersion(data interface{}) error {
	root, _ := data.(map[string]interface{})
	meta, _ := root["metadata"].(map[string]interface{})
	raw, _ := meta["version"].(string)
	if raw == "" {
		return nil
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return &ValidationError{Message: "invalid format version", Details: []string{raw}}
	}
	if !constraint.Check(v) {
		return &ValidationError{
			Message: "unsupported format version",
			Details: []string{fmt.Sprintf("%s is not in %s", raw, SupportedVersions)},
		}
	}
	return nil
}
