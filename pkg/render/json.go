package render

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSON writes documents as indented JSON.
type JSON struct {
	out io.Writer
}

// NewJSON creates a JSON renderer.
func NewJSON(out io.Writer) *JSON {
	return &JSON{out: out}
}

// Render implements Renderer.
func (j *JSON) Render(doc Document) error {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")

	err := enc.Encode(doc)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}
