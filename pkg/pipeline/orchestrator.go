package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/jig/pkg/changeset"
	"github.com/Sumatoshi-tech/jig/pkg/collate"
	"github.com/Sumatoshi-tech/jig/pkg/commitgate"
	"github.com/Sumatoshi-tech/jig/pkg/config"
	"github.com/Sumatoshi-tech/jig/pkg/gitlib"
	"github.com/Sumatoshi-tech/jig/pkg/plugin"
	"github.com/Sumatoshi-tech/jig/pkg/registry"
	"github.com/Sumatoshi-tech/jig/pkg/render"
	"github.com/Sumatoshi-tech/jig/pkg/terminal"
	"github.com/Sumatoshi-tech/jig/pkg/updategate"
)

const tracerName = "jig.pipeline"

// Informational messages for runs that have nothing to check.
const (
	MsgNoPlugins       = "There are no plugins installed, use jig install to add some."
	MsgEmptyRepository = "This repository is empty, jig needs at least 1 commit to continue."
	MsgNoChanges       = "No staged changes in the repository, skipping jig."
)

var (
	// ErrNotInitialized is returned for a repository without a .jig directory.
	ErrNotInitialized = registry.ErrNotInitialized
	// ErrUnknownPlugin is returned when the plugin filter matches nothing.
	ErrUnknownPlugin = errors.New("no installed plugin with that name")
)

// Orchestrator runs the checks for a commit.
type Orchestrator struct {
	cfg          *config.Config
	out          io.Writer
	logger       *slog.Logger
	tracer       trace.Tracer
	recorder     Recorder
	renderer     render.Renderer
	openTerminal func() (PromptSession, error)
	newUpdater   func(root string, dirs []string) updategate.Updater
	now          func() time.Time
}

// New creates an Orchestrator printing reports and notices to out.
func New(cfg *config.Config, out io.Writer, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}

	if out == nil {
		out = io.Discard
	}

	o := &Orchestrator{
		cfg:          cfg,
		out:          out,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		openTerminal: openTTY,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.newUpdater == nil {
		o.newUpdater = o.gitUpdater
	}

	if o.renderer == nil {
		o.renderer = DefaultRenderer(cfg, out)
	}

	return o
}

// DefaultRenderer picks the report renderer from the output configuration.
func DefaultRenderer(cfg *config.Config, out io.Writer) render.Renderer {
	if cfg.Output.Format == config.FormatJSON {
		return render.NewJSON(out)
	}

	termCfg := terminal.NewConfig()
	if cfg.Output.NoColor {
		termCfg.NoColor = true
	}

	return render.NewConsole(out, termCfg, cfg.Output.Verbose)
}

// Run performs one check and returns the commit decision. Errors are
// fatal to the run; a decision is only meaningful when err is nil.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (commitgate.Decision, error) {
	ctx, span := o.tracer.Start(ctx, "jig.run", trace.WithAttributes(
		attribute.String("jig.rev_range", opts.RevRange),
		attribute.String("jig.plugin", opts.Plugin),
		attribute.Bool("jig.interactive", opts.Interactive),
	))
	defer span.End()

	decision, err := o.run(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return commitgate.Blocked, err
	}

	span.SetAttributes(attribute.String("jig.decision", decision.String()))

	return decision, nil
}

func (o *Orchestrator) run(ctx context.Context, opts Options) (commitgate.Decision, error) {
	root, err := gitlib.Discover(opts.RepoPath)
	if err != nil {
		return commitgate.Blocked, fmt.Errorf("%w: %w", changeset.ErrVCS, err)
	}

	if !registry.Initialized(root) {
		return commitgate.Blocked, ErrNotInitialized
	}

	reg, err := registry.Open(root)
	if err != nil {
		return commitgate.Blocked, err
	}

	var session PromptSession

	if opts.Interactive {
		session = o.openSession()
		if session != nil {
			defer o.closeSession(session)
		}

		o.checkForUpdates(ctx, reg, session)
	}

	var rng *changeset.RevisionRange

	if opts.RevRange != "" {
		rng, err = changeset.ParseRevisionRange(opts.RevRange)
		if err != nil {
			return commitgate.Blocked, err
		}
	}

	plugins, err := selectPlugins(reg.Plugins(), opts.Plugin)
	if err != nil {
		return commitgate.Blocked, fmt.Errorf("%w%s", err, reg.Suggest(opts.Plugin))
	}

	if len(plugins) == 0 {
		return o.skip(MsgNoPlugins)
	}

	cs, err := o.resolve(ctx, root, rng, opts.IndexFile)
	if errors.Is(err, changeset.ErrEmptyRepository) {
		return o.skip(MsgEmptyRepository)
	}

	if err != nil {
		return commitgate.Blocked, err
	}

	if len(cs) == 0 {
		return o.skip(noChangesMessage(rng))
	}

	o.logger.InfoContext(ctx, "running plugins", "plugins", len(plugins), "files", len(cs))

	results, err := o.invoker().RunAll(ctx, plugins, cs)
	if err != nil {
		return commitgate.Blocked, fmt.Errorf("run plugins: %w", err)
	}

	report := collate.Collate(results)

	err = o.publish(ctx, root, report, rng)
	if err != nil {
		return commitgate.Blocked, err
	}

	var prompter commitgate.Prompter
	if session != nil {
		prompter = session
	}

	decision := commitgate.New(prompter, o.logger).Decide(ctx, commitgate.Input{
		Counts:      report.Counts,
		PluginsRan:  len(results),
		Interactive: opts.Interactive,
	})

	if o.recorder != nil {
		o.recorder.RecordDecision(ctx, decision.String())
	}

	return decision, nil
}

func (o *Orchestrator) skip(message string) (commitgate.Decision, error) {
	_, err := fmt.Fprintln(o.out, message)
	if err != nil {
		return commitgate.Blocked, fmt.Errorf("write notice: %w", err)
	}

	return commitgate.Proceed, nil
}

func noChangesMessage(rng *changeset.RevisionRange) string {
	if rng == nil {
		return MsgNoChanges
	}

	return fmt.Sprintf("No changes in %s, skipping jig.", rng)
}

func selectPlugins(all []plugin.Plugin, name string) ([]plugin.Plugin, error) {
	if name == "" {
		return all, nil
	}

	for _, p := range all {
		if p.Name() == name {
			return []plugin.Plugin{p}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
}

func (o *Orchestrator) resolve(
	ctx context.Context, root string, rng *changeset.RevisionRange, indexFile string,
) (changeset.ChangeSet, error) {
	repo, err := gitlib.OpenRepository(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", changeset.ErrVCS, err)
	}
	defer repo.Free()

	if indexFile != "" {
		o.logger.DebugContext(ctx, "reading staged changes from index file", "path", indexFile)
		repo.SetIndexFile(indexFile)
	}

	return changeset.NewResolver(repo).Resolve(ctx, rng)
}

func (o *Orchestrator) invoker() *plugin.Invoker {
	inv := plugin.NewInvoker(o.cfg.Plugins.Timeout, o.logger)
	inv.Workers = o.cfg.Plugins.Workers

	if o.recorder != nil {
		inv.SetRecorder(o.recorder)
	}

	return inv
}

// publish renders the report and archives it for jig report. A failed
// archive write is logged, never fatal.
func (o *Orchestrator) publish(ctx context.Context, root string, report collate.Report, rng *changeset.RevisionRange) error {
	doc := render.NewDocument(report, o.now())
	if rng != nil {
		doc.RevRange = rng.String()
	}

	err := o.renderer.Render(doc)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	archiveErr := render.NewArchive(registry.Dir(root)).Save(doc)
	if archiveErr != nil {
		o.logger.WarnContext(ctx, "could not archive report", "error", archiveErr)
	}

	if o.recorder != nil {
		info, warn, stop := report.Counts.Tuple()
		o.recorder.RecordFindings(ctx, collate.Info.String(), info)
		o.recorder.RecordFindings(ctx, collate.Warn.String(), warn)
		o.recorder.RecordFindings(ctx, collate.Stop.String(), stop)
	}

	return nil
}

func (o *Orchestrator) openSession() PromptSession {
	session, err := o.openTerminal()
	if err != nil {
		o.logger.Warn("no terminal for prompts, continuing non-interactively", "error", err)

		return nil
	}

	return session
}

func (o *Orchestrator) closeSession(session PromptSession) {
	err := session.Close()
	if err != nil {
		o.logger.Warn("close terminal", "error", err)
	}
}

// checkForUpdates runs the update flow when it is due. Its failures never
// stop the check.
func (o *Orchestrator) checkForUpdates(ctx context.Context, reg *registry.Registry, session PromptSession) {
	if !o.cfg.Updates.Enabled || session == nil || reg.Len() == 0 {
		return
	}

	gate := updategate.New(registry.NewStateStore(reg.Repo()), o.cfg.Updates.Interval, o.out, o.logger)
	now := o.now()

	due, err := gate.ShouldCheck(now)
	if err != nil {
		o.logger.WarnContext(ctx, "read update state", "error", err)

		return
	}

	if !due {
		return
	}

	dirs := make([]string, 0, reg.Len())
	for _, e := range reg.Entries() {
		dirs = append(dirs, e.Path)
	}

	outcome, err := gate.Run(ctx, now, o.newUpdater(reg.Repo(), dirs), session)
	if err != nil {
		o.logger.WarnContext(ctx, "plugin update check failed", "outcome", outcome.String(), "error", err)

		return
	}

	o.logger.DebugContext(ctx, "plugin update check", "outcome", outcome.String())
}
