package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/artifactwatch/internal/artifact"
	"github.com/hupe1980/artifactwatch/internal/config"
	"github.com/hupe1980/artifactwatch/internal/logging"
	"github.com/hupe1980/artifactwatch/internal/project"
	"github.com/hupe1980/artifactwatch/internal/registry"
	"github.com/hupe1980/artifactwatch/internal/render"
)

func newSnapshotCommand() *cobra.Command {
	opts := &outputOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current project snapshot once",
		Long: `Snapshot loads the project configuration, scans the contracts build
directory once, and prints the resulting project snapshot. No watches are
installed. A missing contracts directory yields an empty snapshot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd.Context(), cmd, opts)
		},
	}

	registerProjectFlags(cmd, opts)
	registerOutputFlags(cmd, opts)

	return cmd
}

func runSnapshot(ctx context.Context, cmd *cobra.Command, opts *outputOptions) error {
	projectFile, err := opts.validate()
	if err != nil {
		return err
	}

	cfg := config.FromContext(ctx)
	logger := logging.Component(ctx, "snapshot")

	constraint, err := artifact.ParseConstraint(cfg.SchemaConstraint)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	desc, err := project.FileLoader{}.Load(projectFile)
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}

	reg := registry.New(registry.Options{
		Network:          cfg.Network,
		SchemaConstraint: constraint,
		OnParseError: func(err error) {
			logger.Warn("skipping unreadable artifact", slog.String("error", err.Error()))
		},
		Logger: logger,
	})

	if err := reg.Load(desc.Config.ContractsBuildDirectory); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		logger.Info("contracts build directory does not exist",
			slog.String("path", desc.Config.ContractsBuildDirectory),
		)
	}

	desc.Artifacts = reg.Artifacts()

	data, err := render.Snapshot(desc, opts.format)
	if err != nil {
		return err
	}

	return opts.writer(cmd).Write(data)
}
