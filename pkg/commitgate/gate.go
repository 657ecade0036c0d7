// Package commitgate decides whether a commit may go ahead once checks have
// reported.
package commitgate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Sumatoshi-tech/jig/pkg/collate"
)

// Question is asked when findings exist in an interactive run.
const Question = "\nCommit anyway (hit \"c\"), or stop (hit \"s\"): "

// Decision is the outcome of the gate.
type Decision int

const (
	// Proceed lets the commit continue.
	Proceed Decision = iota
	// Blocked stops the commit.
	Blocked
	// PendingUserChoice is only observed while the gate waits for input.
	PendingUserChoice
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Blocked:
		return "blocked"
	case PendingUserChoice:
		return "pending"
	default:
		return "unknown"
	}
}

// ExitCode maps a decision to the hook's process exit status.
func (d Decision) ExitCode() int {
	if d == Proceed {
		return 0
	}

	return 1
}

// Prompter asks the user a question and returns the raw answer line. Any
// error means no answer will come.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// Input is what the gate decides on.
type Input struct {
	Counts      collate.Counts
	PluginsRan  int
	Interactive bool
}

// Gate runs the decision state machine.
type Gate struct {
	prompter Prompter
	logger   *slog.Logger
	// observe, when set, sees every state the machine enters.
	observe func(Decision)
}

// New creates a Gate. prompter may be nil for non-interactive use.
func New(prompter Prompter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{prompter: prompter, logger: logger}
}

// Observe registers fn to be called with each state entered, including
// PendingUserChoice.
func (g *Gate) Observe(fn func(Decision)) {
	g.observe = fn
}

// Decide evaluates in and, if needed, asks the user. It never fails: an
// interrupted or closed prompt blocks the commit.
func (g *Gate) Decide(ctx context.Context, in Input) Decision {
	state := evaluate(in, g.prompter != nil)

	for state == PendingUserChoice {
		g.enter(state)
		state = g.await(ctx)
	}

	g.enter(state)

	return state
}

func evaluate(in Input, canPrompt bool) Decision {
	switch {
	case in.PluginsRan == 0 || in.Counts.Total() == 0:
		return Proceed
	case !in.Interactive || !canPrompt:
		if in.Counts.Stop > 0 {
			return Blocked
		}

		return Proceed
	default:
		return PendingUserChoice
	}
}

func (g *Gate) await(ctx context.Context) Decision {
	answer, err := g.prompter.Prompt(ctx, Question)
	if err != nil {
		g.logger.DebugContext(ctx, "commit prompt abandoned", "error", err)

		return Blocked
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return PendingUserChoice
	}

	switch strings.ToLower(answer[:1]) {
	case "s":
		return Blocked
	case "c":
		return Proceed
	default:
		return PendingUserChoice
	}
}

func (g *Gate) enter(d Decision) {
	if g.observe != nil {
		g.observe(d)
	}
}
