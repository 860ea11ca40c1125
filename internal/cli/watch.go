package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/artifactwatch/internal/artifact"
	"github.com/hupe1980/artifactwatch/internal/config"
	"github.com/hupe1980/artifactwatch/internal/logging"
	"github.com/hupe1980/artifactwatch/internal/project"
	"github.com/hupe1980/artifactwatch/internal/render"
	"github.com/hupe1980/artifactwatch/internal/watch"
)

type watchOptions struct {
	outputOptions

	// Watch-specific options.
	diff bool
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a project and print a snapshot on every artifact change",
		Long: `Watch follows the project configuration file and its build directories,
printing a fresh project snapshot whenever a contract artifact is created,
modified, or deleted.

Watches on directories that do not exist yet are picked up as soon as the
directory appears. Editing the project configuration file reloads it and
retargets every watch below it.

Use --diff to print a unified diff against the previous snapshot instead of
the full rendering. Use --output to atomically replace a file with every
snapshot. The command runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, opts)
		},
	}

	registerProjectFlags(cmd, &opts.outputOptions)
	registerOutputFlags(cmd, &opts.outputOptions)

	// Watch-specific flags.
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a unified diff against the previous snapshot")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *watchOptions) error {
	projectFile, err := opts.validate()
	if err != nil {
		return err
	}

	cfg := config.FromContext(ctx)
	logger := logging.Component(ctx, "watch")

	constraint, err := artifact.ParseConstraint(cfg.SchemaConstraint)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	desc, err := project.FileLoader{}.Load(projectFile)
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}

	w, err := watch.New(desc, cfg.Network, watch.Options{
		Loader:           project.FileLoader{},
		Notifier:         watch.FSNotifier{},
		Debounce:         cfg.Debounce,
		SchemaConstraint: constraint,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	updates := make(chan watch.Update, 16)

	unsubscribe := w.Subscribe(func(u watch.Update) {
		select {
		case updates <- u:
		case <-gctx.Done():
		}
	})
	defer unsubscribe()

	p := &printer{
		format: opts.format,
		diff:   opts.diff,
		color:  !cfg.NoColor,
		out:    opts.writer(cmd),
		diffTo: cmd.OutOrStdout(),
		logger: logger,
	}

	g.Go(func() error { return p.run(gctx, updates) })
	g.Go(func() error { return w.Run(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("watch stopped")

	return nil
}

// printer renders successive updates.
type printer struct {
	format string
	diff   bool
	color  bool
	out    render.Writer
	diffTo io.Writer
	logger *slog.Logger

	seen     bool
	previous string
	prevArts []artifact.Artifact
}

func (p *printer) run(ctx context.Context, updates <-chan watch.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			if err := p.print(u); err != nil {
				return err
			}
		}
	}
}

func (p *printer) print(u watch.Update) error {
	snap := u.Snapshot

	data, err := render.Snapshot(snap, p.format)
	if err != nil {
		return err
	}

	changes := watch.Changes(p.prevArts, snap.Artifacts)

	p.logger.Info("project updated",
		slog.Int("contracts", len(snap.Artifacts)),
		slog.String("changes", watch.ChangesSummary(changes)),
	)

	for _, c := range changes {
		p.logger.Debug("contract changed",
			slog.String("kind", c.Kind),
			slog.String("contract", c.Contract),
			slog.String("detail", c.Detail),
		)
	}

	current := string(data)
	first := !p.seen

	p.seen = true
	p.prevArts = snap.Artifacts

	prev := p.previous
	p.previous = current

	if !p.diff || first {
		return p.out.Write(data)
	}

	res, err := render.Diff(prev, current, render.DefaultDiffOptions())
	if err != nil {
		return err
	}

	if _, ok := p.out.(*render.FileWriter); ok {
		if err := p.out.Write(data); err != nil {
			return err
		}
	}

	render.WriteDiff(p.diffTo, res, p.color)

	return nil
}
