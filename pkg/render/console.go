package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/jig/pkg/collate"
	"github.com/Sumatoshi-tech/jig/pkg/terminal"
)

// Symbols printed in front of messages.
const (
	SymbolInfo   = "✓"
	SymbolWarn   = "⚠"
	SymbolStop   = "✕"
	PluginMarker = "▾"
)

// maxCellWidth bounds message text in the verbose table.
const maxCellWidth = 48

// Renderer writes a Document somewhere.
type Renderer interface {
	Render(doc Document) error
}

// Console renders documents the way a person reads them at commit time.
type Console struct {
	out     io.Writer
	cfg     terminal.Config
	verbose bool

	info *color.Color
	warn *color.Color
	stop *color.Color
}

// NewConsole creates a console renderer. verbose adds a per-plugin table.
func NewConsole(out io.Writer, cfg terminal.Config, verbose bool) *Console {
	c := &Console{
		out:     out,
		cfg:     cfg,
		verbose: verbose,
		info:    color.New(color.FgGreen, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		stop:    color.New(color.FgRed, color.Bold),
	}

	for _, col := range []*color.Color{c.info, c.warn, c.stop} {
		if cfg.NoColor {
			col.DisableColor()
		} else {
			col.EnableColor()
		}
	}

	return c
}

// Render implements Renderer. A document with no plugins prints nothing.
func (c *Console) Render(doc Document) error {
	if len(doc.Plugins) == 0 {
		return nil
	}

	var lines []string

	pluginWord := english.PluralWord(len(doc.Plugins), "plugin", "")
	reporters := doc.Reporters()

	if len(reporters) == 0 {
		lines = append(lines, fmt.Sprintf("Ran %d %s, nothing to report", len(doc.Plugins), pluginWord))

		return c.write(lines)
	}

	for _, p := range reporters {
		lines = append(lines, PluginMarker+"  "+p.Name, "")

		for _, m := range p.Messages {
			lines = append(lines, strings.Split(c.symbol(m.Severity)+"  "+formatMessage(m), "\n")...)
			lines = append(lines, "")
		}

		for _, e := range p.Errors {
			lines = append(lines, strings.Split(c.stop.Sprint(SymbolStop)+"  plugin error\n    "+e.Body, "\n")...)
			lines = append(lines, "")
		}
	}

	lines = append(lines,
		fmt.Sprintf("Ran %d %s", len(doc.Plugins), pluginWord),
		fmt.Sprintf("    Info %s Warn %s Stop %s",
			c.count(c.info, doc.Counts.Info),
			c.count(c.warn, doc.Counts.Warn),
			c.count(c.stop, doc.Counts.Stop)),
	)

	if c.verbose {
		lines = append(lines, "", c.summaryTable(doc))
	}

	return c.write(lines)
}

func (c *Console) write(lines []string) error {
	for _, line := range lines {
		_, err := fmt.Fprintln(c.out, line)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	return nil
}

func (c *Console) symbol(severity string) string {
	switch severity {
	case collate.Warn.String():
		return c.warn.Sprint(SymbolWarn)
	case collate.Stop.String():
		return c.stop.Sprint(SymbolStop)
	default:
		return c.info.Sprint(SymbolInfo)
	}
}

func (c *Console) count(col *color.Color, n int) string {
	if n == 0 {
		return "0"
	}

	return col.Sprint(n)
}

func (c *Console) summaryTable(doc Document) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.SetAllowedRowLength(c.cfg.Width)

	tbl.AppendHeader(table.Row{"Plugin", "Bundle", "Exit", "Time", "Info", "Warn", "Stop", "First message"})

	for _, p := range doc.Plugins {
		counts := p.Counts()

		first := ""
		if len(p.Messages) > 0 {
			first = terminal.TruncateWithEllipsis(terminal.FirstLine(p.Messages[0].Body), maxCellWidth)
		}

		tbl.AppendRow(table.Row{
			p.Name,
			p.Bundle,
			strconv.Itoa(p.ExitCode),
			(time.Duration(p.DurationMS) * time.Millisecond).String(),
			counts.Info,
			counts.Warn,
			counts.Stop,
			first,
		})
	}

	tbl.AppendFooter(table.Row{"Total", "", "", "", doc.Counts.Info, doc.Counts.Warn, doc.Counts.Stop, ""})

	return tbl.Render()
}

// formatMessage puts the location on its own line above an indented body.
func formatMessage(m MessageDoc) string {
	header := ""
	if m.Line > 0 {
		header += fmt.Sprintf("line %d: ", m.Line)
	}

	header += m.File

	if header == "" {
		return m.Body
	}

	return header + "\n    " + m.Body
}
