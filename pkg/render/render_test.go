package render_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/jig/pkg/collate"
	"github.com/Sumatoshi-tech/jig/pkg/plugin"
	"github.com/Sumatoshi-tech/jig/pkg/render"
	"github.com/Sumatoshi-tech/jig/pkg/terminal"
)

var generated = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func sampleReport() collate.Report {
	return collate.Collate([]plugin.Result{
		{ID: 0, Name: "quiet", Bundle: "core", Output: plugin.ParseOutput(`{"findings":0}`)},
		{
			ID: 1, Name: "lint", Bundle: "core", ExitCode: 1, Duration: 1500 * time.Millisecond,
			Output: plugin.ParseOutput(`{"a.go": [[4, "w", "unused"], [null, "s", "generated file"]]}`),
		},
		{ID: 2, Name: "notes", Bundle: "extra", Output: plugin.ParseOutput(`["remember the changelog"]`)},
	})
}

func console(verbose bool) (*render.Console, *bytes.Buffer) {
	var buf bytes.Buffer

	return render.NewConsole(&buf, terminal.Config{Width: 100, NoColor: true}, verbose), &buf
}

func TestNewDocument_OrdersLeastSpecificFirst(t *testing.T) {
	t.Parallel()

	doc := render.NewDocument(sampleReport(), generated)

	require.Len(t, doc.Plugins, 3)
	assert.Equal(t, collate.Counts{Info: 1, Warn: 1, Stop: 1}, doc.Counts)

	lint := doc.Plugins[1]
	require.Len(t, lint.Messages, 2)
	assert.Equal(t, "generated file", lint.Messages[0].Body)
	assert.Equal(t, 4, lint.Messages[1].Line)
	assert.Equal(t, int64(1500), lint.DurationMS)
	assert.Equal(t, collate.Counts{Warn: 1, Stop: 1}, lint.Counts())

	reporters := doc.Reporters()
	require.Len(t, reporters, 2)
	assert.Equal(t, "lint", reporters[0].Name)
}

func TestConsole_Render(t *testing.T) {
	t.Parallel()

	r, buf := console(false)

	require.NoError(t, r.Render(render.NewDocument(sampleReport(), generated)))

	want := "▾  lint\n" +
		"\n" +
		"✕  a.go\n" +
		"    generated file\n" +
		"\n" +
		"⚠  line 4: a.go\n" +
		"    unused\n" +
		"\n" +
		"▾  notes\n" +
		"\n" +
		"✓  remember the changelog\n" +
		"\n" +
		"Ran 3 plugins\n" +
		"    Info 1 Warn 1 Stop 1\n"

	assert.Equal(t, want, buf.String())
}

func TestConsole_NothingToReport(t *testing.T) {
	t.Parallel()

	r, buf := console(false)

	report := collate.Collate([]plugin.Result{{Name: "quiet", Output: plugin.ParseOutput("")}})
	require.NoError(t, r.Render(render.NewDocument(report, generated)))
	assert.Equal(t, "Ran 1 plugin, nothing to report\n", buf.String())

	buf.Reset()
	require.NoError(t, r.Render(render.Document{}))
	assert.Empty(t, buf.String())
}

func TestConsole_PluginErrors(t *testing.T) {
	t.Parallel()

	r, buf := console(false)

	report := collate.Collate([]plugin.Result{{
		Name: "crashy", ExitCode: 2, Output: plugin.ParseOutput(""), Stderr: "Traceback: boom",
	}})

	require.NoError(t, r.Render(render.NewDocument(report, generated)))
	assert.Contains(t, buf.String(), "✕  plugin error\n    Traceback: boom\n")
	assert.Contains(t, buf.String(), "Info 0 Warn 0 Stop 1")
}

func TestConsole_VerboseTable(t *testing.T) {
	t.Parallel()

	r, buf := console(true)

	require.NoError(t, r.Render(render.NewDocument(sampleReport(), generated)))

	out := buf.String()
	assert.Contains(t, out, "PLUGIN")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "remember the changelog")
	assert.Contains(t, out, "TOTAL")
}

func TestJSON_Render(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, render.NewJSON(&buf).Render(render.NewDocument(sampleReport(), generated)))

	var decoded render.Document

	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, render.NewDocument(sampleReport(), generated), decoded)
	assert.Contains(t, buf.String(), `"severity": "warn"`)
}

func TestArchive_SaveLoad(t *testing.T) {
	t.Parallel()

	archive := render.NewArchive(t.TempDir())

	_, err := archive.Load()
	require.ErrorIs(t, err, render.ErrNoArchive)

	doc := render.NewDocument(sampleReport(), generated)
	doc.RevRange = "HEAD~1..HEAD"

	require.NoError(t, archive.Save(doc))
	assert.FileExists(t, archive.Path())
	assert.Contains(t, archive.Path(), "last-report.json.lz4")

	loaded, err := archive.Load()
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestWriteProvenance(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	doc := render.Document{Generated: generated, RevRange: "a..b"}

	require.NoError(t, render.WriteProvenance(&buf, doc, generated.Add(3*time.Minute)))
	assert.Equal(t, "Report for a..b from 3 minutes ago\n\n", buf.String())
}
