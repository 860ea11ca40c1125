package watch

import (
	"fmt"

	"github.com/hupe1980/artifactwatch/internal/artifact"
)

// ConfigLoadError reports a project configuration that could not be
// reloaded. The previous descriptor stays in effect.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("reloading project config %q: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// WatchInstallError reports a level whose watch could not be installed. The
// level stays idle until its parent level restarts it.
type WatchInstallError struct {
	Level Level
	Path  string
	Err   error
}

func (e *WatchInstallError) Error() string {
	return fmt.Sprintf("installing %s watch on %q: %v", e.Level, e.Path, e.Err)
}

func (e *WatchInstallError) Unwrap() error { return e.Err }

// ArtifactParseError reports an artifact file kept as a placeholder.
type ArtifactParseError = artifact.ParseError
