package gapline

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema of a Document.
//
//go:embed schema.json
var Schema []byte

var schemaLoader = gojsonschema.NewBytesLoader(Schema)

// ValidationError is returned when a document does not match Schema. It lists
// every violation.
type ValidationError struct {
	Violations []string
}

func (err *ValidationError) Error() string {
	return "invalid document: " + strings.Join(err.Violations, "; ")
}

// ValidateDocument validates the raw JSON document against Schema.
func ValidateDocument(b []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(b))
	if err != nil {
		return errors.Wrap(err, "cannot validate document")
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		violations[i] = desc.String()
	}

	return &ValidationError{violations}
}

// ParseDocument validates and decodes a raw JSON document.
func ParseDocument(b []byte) (Document, error) {
	if err := ValidateDocument(b); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "cannot decode document")
	}

	return doc, nil
}
