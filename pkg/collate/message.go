// Package collate turns per-plugin results into a single report with
// severity counts.
package collate

import (
	"strings"

	"github.com/Sumatoshi-tech/jig/pkg/plugin"
)

// Severity classifies a message.
type Severity int

const (
	// Info messages never block a commit.
	Info Severity = iota
	// Warn messages ask for attention.
	Warn
	// Stop messages are blocking findings.
	Stop
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// LookupSeverity maps a plugin supplied type string to a Severity by its
// first letter (i, w, s). Anything else yields fallback.
func LookupSeverity(name string, fallback Severity) Severity {
	switch {
	case strings.HasPrefix(strings.ToLower(name), "i"):
		return Info
	case strings.HasPrefix(strings.ToLower(name), "w"):
		return Warn
	case strings.HasPrefix(strings.ToLower(name), "s"):
		return Stop
	default:
		return fallback
	}
}

// Scope says what a message is attached to.
type Scope int

const (
	// ScopeCommit messages concern the change as a whole.
	ScopeCommit Scope = iota
	// ScopeFile messages concern one file.
	ScopeFile
	// ScopeLine messages point at one line of a file.
	ScopeLine
)

// Message is one thing a plugin told the user.
type Message struct {
	Plugin   plugin.ID
	Severity Severity
	Body     string
	File     string
	Line     int
}

// Scope derives the message scope from its location fields.
func (m Message) Scope() Scope {
	switch {
	case m.Line > 0:
		return ScopeLine
	case m.File != "":
		return ScopeFile
	default:
		return ScopeCommit
	}
}

// Counts tallies messages by severity.
type Counts struct {
	Info int `json:"info"`
	Warn int `json:"warn"`
	Stop int `json:"stop"`
}

// Total returns the number of counted messages.
func (c Counts) Total() int {
	return c.Info + c.Warn + c.Stop
}

// Tuple returns (info, warn, stop).
func (c Counts) Tuple() (info, warn, stop int) {
	return c.Info, c.Warn, c.Stop
}

func (c *Counts) add(s Severity) {
	switch s {
	case Info:
		c.Info++
	case Warn:
		c.Warn++
	case Stop:
		c.Stop++
	}
}
