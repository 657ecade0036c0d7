package changeset

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EncodingBase64 marks a file whose patch and line texts are base64 of the
// raw bytes. JSON strings cannot carry invalid UTF-8 unchanged.
const EncodingBase64 = "base64"

// payload is the document every plugin receives on standard input.
type payload struct {
	Files []filePayload `json:"files"`
}

type filePayload struct {
	Path      string   `json:"path"`
	OldPath   string   `json:"old_path,omitempty"`
	Type      Kind     `json:"type"`
	Language  string   `json:"language,omitempty"`
	Binary    bool     `json:"binary"`
	Vendored  bool     `json:"vendored"`
	Submodule bool     `json:"submodule,omitempty"`
	Encoding  string   `json:"encoding,omitempty"`
	Patch     string   `json:"patch"`
	Diff      [][3]any `json:"diff"`
}

// Encode renders the ChangeSet as the JSON document handed to plugins:
// {"files":[{"path":..., "type":..., "diff":[[line, "+", text], ...]}]}.
// Files that are not valid UTF-8 are sent with "encoding":"base64".
func Encode(cs ChangeSet) ([]byte, error) {
	doc := payload{Files: make([]filePayload, 0, len(cs))}

	for _, fc := range cs {
		text := func(s string) string { return s }

		var encoding string
		if !fc.validUTF8() {
			encoding = EncodingBase64
			text = func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
		}

		diff := make([][3]any, 0, len(fc.Lines))
		for _, line := range fc.Lines {
			diff = append(diff, [3]any{line.Number, line.Op, text(line.Text)})
		}

		doc.Files = append(doc.Files, filePayload{
			Path:      fc.Path,
			OldPath:   fc.OldPath,
			Type:      fc.Kind,
			Language:  fc.Language,
			Binary:    fc.Binary,
			Vendored:  fc.Vendored,
			Submodule: fc.Submodule,
			Encoding:  encoding,
			Patch:     text(fc.Patch),
			Diff:      diff,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode changeset: %w", err)
	}

	return data, nil
}

func (fc FileChange) validUTF8() bool {
	if !utf8.ValidString(fc.Patch) {
		return false
	}

	for _, line := range fc.Lines {
		if !utf8.ValidString(line.Text) {
			return false
		}
	}

	return true
}
