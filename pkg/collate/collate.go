package collate

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/jig/pkg/plugin"
)

// ErrUnrecognizedShape is recorded when structured output does not match any
// known message layout.
var ErrUnrecognizedShape = errors.New("unrecognized plugin output")

// Entry is one plugin's contribution to a report.
type Entry struct {
	Result   plugin.Result
	Messages []Message
	// Errors holds problems with the plugin itself (stderr on failure,
	// malformed output). They are shown but never counted.
	Errors []Message
}

// Reported reports whether the entry has anything to show.
func (e Entry) Reported() bool {
	return len(e.Messages) > 0 || len(e.Errors) > 0
}

// Report is the collated view of one run. Entries keep plugin order.
type Report struct {
	Entries []Entry
	Counts  Counts
}

// Lookup returns the entry for a plugin handle.
func (r Report) Lookup(id plugin.ID) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Result.ID == id {
			return e, true
		}
	}

	return Entry{}, false
}

// Blocking reports whether any counted message is a Stop.
func (r Report) Blocking() bool {
	return r.Counts.Stop > 0
}

// Collate classifies every result and tallies severities. Output of a plugin
// that exited zero defaults to Info; output of a plugin that did not exit zero
// defaults to Stop, and such a plugin always yields at least one Stop message
// so an unexplained failure is never silently accepted.
func Collate(results []plugin.Result) Report {
	report := Report{Entries: make([]Entry, 0, len(results))}

	for _, res := range results {
		entry := collateOne(res)
		for _, m := range entry.Messages {
			report.Counts.add(m.Severity)
		}

		report.Entries = append(report.Entries, entry)
	}

	return report
}

func collateOne(res plugin.Result) Entry {
	entry := Entry{Result: res}

	if res.Failed() {
		entry.Messages = []Message{{
			Plugin:   res.ID,
			Severity: Stop,
			Body:     fmt.Sprintf("plugin could not be run: %v", res.Err),
		}}

		return entry
	}

	fallback := Info
	if res.ExitCode != 0 {
		fallback = Stop
	}

	ex := extractor{id: res.ID, fallback: fallback}

	if res.Output.IsStructured() {
		ex.value(res.Output.Value())
	} else if text := strings.TrimSpace(res.Output.Text()); text != "" {
		ex.add(fallback, text, "", 0)
	}

	entry.Messages = ex.messages
	entry.Errors = ex.errors

	if res.ExitCode != 0 {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			entry.Errors = append(entry.Errors, Message{Plugin: res.ID, Severity: Stop, Body: stderr})
		}

		if len(entry.Messages) == 0 {
			entry.Messages = append(entry.Messages, Message{
				Plugin:   res.ID,
				Severity: Stop,
				Body:     failureBody(res),
			})
		}
	}

	return entry
}

func failureBody(res plugin.Result) string {
	if text := strings.TrimSpace(res.Output.Text()); text != "" {
		return text
	}

	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		return stderr
	}

	return fmt.Sprintf("plugin exited with status %d", res.ExitCode)
}

type extractor struct {
	id       plugin.ID
	fallback Severity
	messages []Message
	errors   []Message
}

func (ex *extractor) add(sev Severity, body, file string, line int) {
	ex.messages = append(ex.messages, Message{
		Plugin:   ex.id,
		Severity: sev,
		Body:     body,
		File:     file,
		Line:     line,
	})
}

func (ex *extractor) fail(format string, args ...any) {
	ex.errors = append(ex.errors, Message{
		Plugin:   ex.id,
		Severity: Stop,
		Body:     fmt.Sprintf("%v: %s", ErrUnrecognizedShape, fmt.Sprintf(format, args...)),
	})
}

// value dispatches on the top-level layout: a string or list is about the
// commit, an object maps file names to messages.
func (ex *extractor) value(v any) {
	if falsy(v) {
		return
	}

	switch val := v.(type) {
	case string:
		ex.add(ex.fallback, val, "", 0)
	case []any:
		ex.commitList(val)
	case map[string]any:
		ex.files(val)
	default:
		ex.fail("unexpected %s", describe(v))
	}
}

func (ex *extractor) commitList(items []any) {
	for _, item := range items {
		if falsy(item) {
			continue
		}

		switch it := item.(type) {
		case string:
			ex.add(ex.fallback, it, "", 0)
		case []any:
			ex.tuple(it, "")
		default:
			ex.fail("unexpected %s in message list", describe(item))
		}
	}
}

func (ex *extractor) files(groups map[string]any) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		group := groups[name]
		if falsy(group) {
			continue
		}

		switch g := group.(type) {
		case string:
			ex.add(ex.fallback, g, name, 0)
		case []any:
			for _, item := range g {
				if falsy(item) {
					continue
				}

				switch it := item.(type) {
				case string:
					ex.add(ex.fallback, it, name, 0)
				case []any:
					ex.tuple(it, name)
				default:
					ex.fail("unexpected %s for %s", describe(item), name)
				}
			}
		default:
			ex.fail("unexpected %s for %s", describe(group), name)
		}
	}
}

// tuple handles [BODY], [TYPE, BODY] and [LINE, TYPE, BODY]. A null LINE
// makes the message file level.
func (ex *extractor) tuple(t []any, file string) {
	switch len(t) {
	case 1:
		ex.body(ex.fallback, t[0], file, 0)
	case 2:
		ex.body(severityOf(t[0], ex.fallback), t[1], file, 0)
	case 3:
		if file == "" {
			ex.fail("line message without a file")

			return
		}

		line, ok := lineNumber(t[0])
		if !ok {
			ex.fail("bad line number %s in %s", describe(t[0]), file)

			return
		}

		ex.body(severityOf(t[1], ex.fallback), t[2], file, line)
	default:
		ex.fail("message with %d elements", len(t))
	}
}

func (ex *extractor) body(sev Severity, v any, file string, line int) {
	if falsy(v) {
		return
	}

	switch b := v.(type) {
	case string:
		ex.add(sev, b, file, line)
	case json.Number, bool:
		ex.add(sev, fmt.Sprint(b), file, line)
	default:
		ex.fail("unexpected %s as message body", describe(v))
	}
}

func severityOf(v any, fallback Severity) Severity {
	s, ok := v.(string)
	if !ok {
		return fallback
	}

	return LookupSeverity(s, fallback)
}

func lineNumber(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case json.Number:
		i, err := n.Int64()
		if err == nil && i >= 0 && i <= math.MaxInt32 {
			return int(i), true
		}
	}

	return 0, false
}

// falsy mirrors JSON truthiness: null, false, zero, and empty values say
// nothing.
func falsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case json.Number:
		f, err := val.Float64()

		return err == nil && f == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
