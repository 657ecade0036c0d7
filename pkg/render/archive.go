package render

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/jig/pkg/persist"
)

const archiveBasename = "last-report"

// ErrNoArchive is returned when no report was archived yet.
var ErrNoArchive = errors.New("no report has been archived yet, run jig runnow first")

// Archive keeps the most recent Document in a directory as LZ4 compressed
// JSON.
type Archive struct {
	dir       string
	persister *persist.Persister[Document]
}

// NewArchive stores documents in dir.
func NewArchive(dir string) *Archive {
	return &Archive{
		dir:       dir,
		persister: persist.NewPersister[Document](archiveBasename, persist.NewLZ4Codec(&persist.JSONCodec{})),
	}
}

// Path returns the archive file.
func (a *Archive) Path() string {
	return a.persister.Path(a.dir)
}

// Save replaces the archived document.
func (a *Archive) Save(doc Document) error {
	err := a.persister.Save(a.dir, &doc)
	if err != nil {
		return fmt.Errorf("archive report: %w", err)
	}

	return nil
}

// Load returns the archived document or ErrNoArchive.
func (a *Archive) Load() (Document, error) {
	doc, found, err := a.persister.Load(a.dir)
	if err != nil {
		return Document{}, fmt.Errorf("load archived report: %w", err)
	}

	if !found {
		return Document{}, ErrNoArchive
	}

	return doc, nil
}

// WriteProvenance prints when and for what the document was produced.
func WriteProvenance(w io.Writer, doc Document, now time.Time) error {
	subject := "staged changes"
	if doc.RevRange != "" {
		subject = doc.RevRange
	}

	_, err := fmt.Fprintf(w, "Report for %s from %s\n\n", subject, humanize.RelTime(doc.Generated, now, "ago", "from now"))
	if err != nil {
		return fmt.Errorf("write report header: %w", err)
	}

	return nil
}
