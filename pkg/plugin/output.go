package plugin

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// OutputKind tags a ParsedOutput.
type OutputKind int

const (
	// Raw output is opaque text.
	Raw OutputKind = iota
	// Structured output decoded as JSON.
	Structured
)

// String returns the kind name.
func (k OutputKind) String() string {
	if k == Structured {
		return "structured"
	}

	return "raw"
}

// ParsedOutput is either a decoded JSON value or the raw stdout text.
type ParsedOutput struct {
	kind  OutputKind
	value any
	text  string
}

// RawOutput wraps text that is not structured.
func RawOutput(text string) ParsedOutput {
	return ParsedOutput{kind: Raw, text: text}
}

// StructuredOutput wraps an already decoded value.
func StructuredOutput(value any, text string) ParsedOutput {
	return ParsedOutput{kind: Structured, value: value, text: text}
}

// Kind returns the variant.
func (p ParsedOutput) Kind() OutputKind { return p.kind }

// IsStructured reports whether stdout decoded as JSON.
func (p ParsedOutput) IsStructured() bool { return p.kind == Structured }

// Value returns the decoded value, nil for raw output.
func (p ParsedOutput) Value() any { return p.value }

// Text returns stdout exactly as the plugin wrote it.
func (p ParsedOutput) Text() string { return p.text }

// ParseOutput decodes stdout as a single JSON document and falls back to raw
// text when that fails. Numbers are kept as json.Number. It never fails and
// holds no state, so parsing the same text twice yields equal results.
func ParseOutput(stdout string) ParsedOutput {
	if strings.TrimSpace(stdout) == "" {
		return RawOutput(stdout)
	}

	dec := json.NewDecoder(strings.NewReader(stdout))
	dec.UseNumber()

	var value any

	err := dec.Decode(&value)
	if err != nil {
		return RawOutput(stdout)
	}

	// Trailing data after the first document means this is not JSON output.
	var extra any
	if !errors.Is(dec.Decode(&extra), io.EOF) {
		return RawOutput(stdout)
	}

	return StructuredOutput(value, stdout)
}
