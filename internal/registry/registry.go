// Package registry keeps the ordered set of parsed artifacts for one contracts
// build directory.
//
// Artifacts live in a dense slice of slots; a side index maps each filename to
// its slot. A slot whose file failed to parse holds a placeholder so that
// positions stay stable for the files read before and after it. Removing a
// file drops exactly one slot and shifts the index of every later filename
// down by one.
//
// A Registry is not safe for concurrent use; it is owned by a single goroutine.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"

	"github.com/hupe1980/artifactwatch/internal/artifact"
)

// Op classifies how a filesystem event changed the registry.
type Op int

// Registry operations.
const (
	OpNone Op = iota
	OpCreate
	OpModify
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "none"
	}
}

type slot struct {
	name     string
	artifact artifact.Artifact // nil for a placeholder
}

// Options configures a Registry.
type Options struct {
	// Network selects the deployment record used to decorate artifacts.
	Network string

	// SchemaConstraint, when set, logs a warning for artifacts whose schema
	// version does not satisfy it. Such artifacts are still registered.
	SchemaConstraint *semver.Constraints

	// OnParseError receives every artifact that could not be parsed.
	OnParseError func(err error)

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Registry is the filename-indexed artifact list of one directory.
type Registry struct {
	opts  Options
	dir   string
	slots []slot
	index map[string]int
}

// New returns an empty registry.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Registry{
		opts:  opts,
		index: make(map[string]int),
	}
}

// Dir returns the directory the registry was last loaded from.
func (r *Registry) Dir() string { return r.dir }

// Len returns the number of slots, placeholders included.
func (r *Registry) Len() int { return len(r.slots) }

// Reset empties the registry and forgets its directory.
func (r *Registry) Reset() {
	r.dir = ""
	r.slots = nil
	r.index = make(map[string]int)
}

// Load resets the registry and scans dir. Entries are visited in name order
// and every regular file with the artifact extension, symlinks followed,
// takes the next slot.
func (r *Registry) Load(dir string) error {
	r.Reset()
	r.dir = dir

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing %q: %w", dir, err)
	}

	for _, e := range entries {
		if !r.tracked(e.Name()) {
			continue
		}

		r.add(e.Name())
	}

	r.opts.Logger.Debug("artifacts scanned",
		slog.String("dir", dir),
		slog.Int("slots", len(r.slots)),
	)

	return nil
}

// Apply reconciles one filename against the file system and returns the
// operation performed. Names without the artifact extension, and deletions
// of names that were never registered, yield OpNone.
func (r *Registry) Apply(name string) Op {
	name = filepath.Base(name)
	if r.dir == "" || !artifact.IsArtifactFile(name) {
		return OpNone
	}

	_, known := r.index[name]
	exists := r.tracked(name)

	switch {
	case exists && !known:
		r.add(name)
		return OpCreate
	case exists && known:
		r.replace(name)
		return OpModify
	case !exists && known:
		r.Remove(name)
		return OpDelete
	default:
		return OpNone
	}
}

// Remove drops name's slot and re-indexes the slots after it. It reports
// whether name was registered.
func (r *Registry) Remove(name string) bool {
	pos, ok := r.index[name]
	if !ok {
		return false
	}

	r.slots = append(r.slots[:pos], r.slots[pos+1:]...)
	delete(r.index, name)

	for i := pos; i < len(r.slots); i++ {
		r.index[r.slots[i].name] = i
	}

	return true
}

// Artifacts returns deep copies of every parsed artifact in slot order.
// Placeholders are skipped.
func (r *Registry) Artifacts() []artifact.Artifact {
	out := make([]artifact.Artifact, 0, len(r.slots))

	for _, s := range r.slots {
		if s.artifact == nil {
			continue
		}

		out = append(out, s.artifact.Clone())
	}

	return out
}

// Index returns a copy of the filename index.
func (r *Registry) Index() map[string]int {
	out := make(map[string]int, len(r.index))
	for k, v := range r.index {
		out[k] = v
	}

	return out
}

// Get returns the artifact registered for name. ok is false for unknown
// names; a known name holding a placeholder returns a nil artifact and true.
func (r *Registry) Get(name string) (artifact.Artifact, bool) {
	pos, ok := r.index[name]
	if !ok {
		return nil, false
	}

	return r.slots[pos].artifact, true
}

// tracked reports whether name in the registry directory is an artifact
// file on disk. Scans and events share it so both see the same files.
func (r *Registry) tracked(name string) bool {
	if !artifact.IsArtifactFile(name) {
		return false
	}

	info, err := os.Stat(filepath.Join(r.dir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.opts.Logger.Warn("stat artifact", slog.String("file", name), slog.String("error", err.Error()))
		}

		return false
	}

	return info.Mode().IsRegular()
}

func (r *Registry) add(name string) {
	r.index[name] = len(r.slots)
	r.slots = append(r.slots, slot{name: name, artifact: r.read(name)})
}

func (r *Registry) replace(name string) {
	r.slots[r.index[name]].artifact = r.read(name)
}

func (r *Registry) read(name string) artifact.Artifact {
	a, err := artifact.ReadFile(filepath.Join(r.dir, name), r.opts.Network)
	if err != nil {
		r.opts.Logger.Warn("artifact unreadable, keeping placeholder",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)

		if r.opts.OnParseError != nil {
			r.opts.OnParseError(err)
		}

		return nil
	}

	if err := a.CheckSchema(r.opts.SchemaConstraint); err != nil {
		r.opts.Logger.Warn("artifact schema mismatch",
			slog.String("file", name),
			slog.String("error", err.Error()),
		)
	}

	return a
}
