package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/artifactwatch/internal/render"
)

// outputOptions are shared by every command that renders a snapshot.
type outputOptions struct {
	projectFile string
	format      string
	output      string
}

// registerProjectFlags adds the project config file flag to a cobra command.
func registerProjectFlags(cmd *cobra.Command, opts *outputOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.projectFile, "project", "p", "", "project configuration file (required)")
}

// registerOutputFlags adds the rendering flags to a cobra command.
func registerOutputFlags(cmd *cobra.Command, opts *outputOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", render.FormatText, "output format: text, json, yaml")
	f.StringVarP(&opts.output, "output", "o", "", "write each snapshot to this file instead of stdout")
}

// validate checks the shared options and returns the absolute project file
// path. Failures are usage errors.
func (o *outputOptions) validate() (string, error) {
	if o.projectFile == "" {
		return "", &ExitError{Code: 2, Err: fmt.Errorf("--project (-p) is required")}
	}

	if err := render.ValidateFormat(o.format); err != nil {
		return "", &ExitError{Code: 2, Err: err}
	}

	abs, err := filepath.Abs(o.projectFile)
	if err != nil {
		return "", &ExitError{Code: 2, Err: fmt.Errorf("resolving %s: %w", o.projectFile, err)}
	}

	return abs, nil
}

// writer returns the destination for renderings.
func (o *outputOptions) writer(cmd *cobra.Command) render.Writer {
	if o.output != "" {
		return render.NewFileWriter(o.output)
	}

	return render.NewStreamWriter(cmd.OutOrStdout())
}
