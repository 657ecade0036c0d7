// Package updategate decides when to look for plugin updates and walks the
// user through installing them.
package updategate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// DefaultInterval is how long a check stays fresh.
const DefaultInterval = 7 * 24 * time.Hour

// Question is shown when updates are available.
const Question = "\nPlugin updates are available, install (\"y\"/\"n\"): "

// Outcome is the result of an update flow.
type Outcome int

const (
	// OutcomeNoUpdates means every plugin is current.
	OutcomeNoUpdates Outcome = iota
	// OutcomeInstalled means the user accepted and updates were installed.
	OutcomeInstalled
	// OutcomeDeclined means the user said no.
	OutcomeDeclined
	// OutcomeInterrupted means the prompt was abandoned; the check is
	// retried next run.
	OutcomeInterrupted
	// OutcomeFailed means checking or installing failed.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoUpdates:
		return "no-updates"
	case OutcomeInstalled:
		return "installed"
	case OutcomeDeclined:
		return "declined"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateSource persists the time of the last check.
type StateSource interface {
	LastChecked() (time.Time, error)
	SetLastChecked(t time.Time) error
}

// Updater finds and installs newer plugin code.
type Updater interface {
	HasUpdates(ctx context.Context) (bool, error)
	Install(ctx context.Context) error
}

// Prompter asks the user a question and returns the raw answer line. Any
// error means no answer will come.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// Gate holds the update policy for one repository.
type Gate struct {
	state    StateSource
	interval time.Duration
	out      io.Writer
	logger   *slog.Logger
}

// New creates a Gate. A non-positive interval means DefaultInterval.
func New(state StateSource, interval time.Duration, out io.Writer, logger *slog.Logger) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if out == nil {
		out = io.Discard
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{state: state, interval: interval, out: out, logger: logger}
}

// ShouldCheck reports whether now is strictly past the last check plus the
// interval.
func (g *Gate) ShouldCheck(now time.Time) (bool, error) {
	last, err := g.state.LastChecked()
	if err != nil {
		return false, fmt.Errorf("read update state: %w", err)
	}

	return now.After(last.Add(g.interval)), nil
}

// RecordAttempt stores now as the last check.
func (g *Gate) RecordAttempt(now time.Time) error {
	err := g.state.SetLastChecked(now)
	if err != nil {
		return fmt.Errorf("record update check: %w", err)
	}

	return nil
}

// Run probes for updates and, when there are some, asks whether to install
// them. The timestamp is moved to now unless the prompt is abandoned.
func (g *Gate) Run(ctx context.Context, now time.Time, updater Updater, prompter Prompter) (Outcome, error) {
	fmt.Fprintln(g.out, "Checking for plugin updates…")

	available, err := updater.HasUpdates(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "plugin update check failed", "error", err)

		return OutcomeFailed, g.finish(now, fmt.Errorf("check for plugin updates: %w", err))
	}

	if !available {
		return OutcomeNoUpdates, g.RecordAttempt(now)
	}

	recorded := false

	for {
		answer, promptErr := prompter.Prompt(ctx, Question)
		if promptErr != nil {
			g.logger.DebugContext(ctx, "update prompt abandoned", "error", promptErr)

			return OutcomeInterrupted, nil
		}

		if !recorded {
			err = g.RecordAttempt(now)
			if err != nil {
				return OutcomeFailed, err
			}

			recorded = true
		}

		switch firstLetter(answer) {
		case 'y':
			err = updater.Install(ctx)
			if err != nil {
				return OutcomeFailed, fmt.Errorf("install plugin updates: %w", err)
			}

			return OutcomeInstalled, nil
		case 'n':
			return OutcomeDeclined, nil
		}
	}
}

// finish records the attempt and returns cause. A failing remote is not
// retried until the interval passes again.
func (g *Gate) finish(now time.Time, cause error) error {
	err := g.RecordAttempt(now)
	if err != nil {
		g.logger.Warn("could not record update check", "error", err)
	}

	return cause
}

func firstLetter(answer string) byte {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return 0
	}

	return strings.ToLower(answer[:1])[0]
}
