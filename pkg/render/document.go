// Package render prints collated reports for people and machines and keeps
// the last report of a repository on disk.
package render

import (
	"cmp"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/jig/pkg/collate"
)

// Document is the serializable form of a report.
type Document struct {
	Generated time.Time      `json:"generated"`
	RevRange  string         `json:"rev_range,omitempty"`
	Plugins   []PluginDoc    `json:"plugins"`
	Counts    collate.Counts `json:"counts"`
}

// PluginDoc is one plugin's part of a Document.
type PluginDoc struct {
	ID         int          `json:"id"`
	Name       string       `json:"name"`
	Bundle     string       `json:"bundle"`
	ExitCode   int          `json:"exit_code"`
	DurationMS int64        `json:"duration_ms"`
	Messages   []MessageDoc `json:"messages,omitempty"`
	Errors     []MessageDoc `json:"errors,omitempty"`
}

// Reported reports whether the plugin has anything to show.
func (p PluginDoc) Reported() bool {
	return len(p.Messages) > 0 || len(p.Errors) > 0
}

// Counts tallies the plugin's messages.
func (p PluginDoc) Counts() collate.Counts {
	var c collate.Counts

	for _, m := range p.Messages {
		switch m.Severity {
		case collate.Info.String():
			c.Info++
		case collate.Warn.String():
			c.Warn++
		case collate.Stop.String():
			c.Stop++
		}
	}

	return c
}

// MessageDoc is a single message.
type MessageDoc struct {
	Severity string `json:"severity"`
	Body     string `json:"body"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// NewDocument converts a report. Messages of each plugin are ordered from
// least to most specific: commit, then file, then line.
func NewDocument(report collate.Report, generated time.Time) Document {
	doc := Document{
		Generated: generated.UTC(),
		Plugins:   make([]PluginDoc, 0, len(report.Entries)),
		Counts:    report.Counts,
	}

	for _, e := range report.Entries {
		msgs := slices.Clone(e.Messages)
		slices.SortStableFunc(msgs, func(a, b collate.Message) int {
			return cmp.Compare(a.Scope(), b.Scope())
		})

		doc.Plugins = append(doc.Plugins, PluginDoc{
			ID:         int(e.Result.ID),
			Name:       e.Result.Name,
			Bundle:     e.Result.Bundle,
			ExitCode:   e.Result.ExitCode,
			DurationMS: e.Result.Duration.Milliseconds(),
			Messages:   messageDocs(msgs),
			Errors:     messageDocs(e.Errors),
		})
	}

	return doc
}

// Reporters returns the plugins that have something to show.
func (d Document) Reporters() []PluginDoc {
	var out []PluginDoc

	for _, p := range d.Plugins {
		if p.Reported() {
			out = append(out, p)
		}
	}

	return out
}

func messageDocs(msgs []collate.Message) []MessageDoc {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]MessageDoc, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDoc{
			Severity: m.Severity.String(),
			Body:     m.Body,
			File:     m.File,
			Line:     m.Line,
		})
	}

	return out
}
