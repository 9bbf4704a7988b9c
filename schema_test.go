package gapline

import (
	"errors"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	type test struct {
		name  string
		input string
		valid bool
	}

	var tests = []test{{
		name:  "empty",
		input: `[]`,
		valid: true,
	}, {
		name: "full",
		input: `[{
			"key": "cpu",
			"fullName": "CPU usage",
			"unit": "%",
			"order": "1",
			"color": "#EAB839",
			"values": [
				{"x": "2021-01-01T00:00:00Z", "y": 1},
				{"x": 1609459500000, "y": null}
			]
		}]`,
		valid: true,
	}, {
		name:  "not_array",
		input: `{"key": "cpu", "values": []}`,
	}, {
		name:  "missing_key",
		input: `[{"values": []}]`,
	}, {
		name:  "empty_key",
		input: `[{"key": "", "values": []}]`,
	}, {
		name:  "missing_values",
		input: `[{"key": "cpu"}]`,
	}, {
		name:  "missing_y",
		input: `[{"key": "cpu", "values": [{"x": 0}]}]`,
	}, {
		name:  "bool_x",
		input: `[{"key": "cpu", "values": [{"x": true, "y": 1}]}]`,
	}, {
		name:  "fractional_order",
		input: `[{"key": "cpu", "order": 1.5, "values": []}]`,
		valid: true,
	}, {
		name:  "bool_order",
		input: `[{"key": "cpu", "order": true, "values": []}]`,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateDocument([]byte(test.input))
			if test.valid {
				if err != nil {
					t.Fatal("unexpected error:", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected a validation error, got %v", err)
			}

			if len(verr.Violations) == 0 {
				t.Fatal("expected at least one violation")
			}
		})
	}
}

func TestValidateDocumentMalformed(t *testing.T) {
	err := ValidateDocument([]byte(`[{"key": `))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Fatalf("expected a decoding error, got violations %v", verr.Violations)
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`[
		{"key": "cpu", "order": 2, "values": [{"x": 0, "y": 1}, {"x": 10000, "y": 2}]},
		{"key": "mem", "order": "1", "values": []}
	]`))
	if err != nil {
		t.Fatal("failed to parse:", err)
	}

	if len(doc) != 2 {
		t.Fatalf("expected %d series, got %d", 2, len(doc))
	}

	if doc[1].Order != 1 {
		t.Fatalf("expected order %d, got %d", 1, doc[1].Order)
	}

	if n := len(doc[0].Values); n != 2 {
		t.Fatalf("expected %d samples, got %d", 2, n)
	}

	if _, err := ParseDocument([]byte(`[{"values": []}]`)); err == nil {
		t.Fatal("expected error for a series without key")
	}
}
