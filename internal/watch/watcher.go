package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/hupe1980/artifactwatch/internal/project"
	"github.com/hupe1980/artifactwatch/internal/registry"
)

// EventProjectDetailsUpdate names the notification carrying a new snapshot.
const EventProjectDetailsUpdate = "project-details-update"

// Update is delivered to listeners whenever the artifact registry changes.
type Update struct {
	Event    string              `json:"event"`
	Snapshot *project.Descriptor `json:"project"`
}

// Listener receives updates on the goroutine driving the cascade: the caller
// of Start for the initial scan, the loop goroutine afterwards. It must not
// call Stop.
type Listener func(Update)

// Options configures a Watcher.
type Options struct {
	// Loader reloads the project when its configuration file changes.
	// Defaults to project.FileLoader.
	Loader project.Loader

	// Notifier installs file system watches. Defaults to FSNotifier.
	Notifier Notifier

	// Debounce is the quiet period before a configuration change is
	// reloaded.
	Debounce time.Duration

	// SchemaConstraint, when set, warns about artifacts whose schema
	// version does not satisfy it.
	SchemaConstraint *semver.Constraints

	// OnError receives every recoverable failure: *ConfigLoadError,
	// *ArtifactParseError and *WatchInstallError. It runs on the goroutine
	// driving the cascade: the caller of Start, then the loop goroutine.
	OnError func(err error)

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Loader:   project.FileLoader{},
		Notifier: FSNotifier{},
		Debounce: 100 * time.Millisecond,
		Logger:   slog.Default(),
	}
}

type lifecycle int

const (
	lifeNew lifecycle = iota
	lifeRunning
	lifeStopped
)

// ErrAlreadyStarted is returned by Start on a watcher that was started or
// stopped before.
var ErrAlreadyStarted = errors.New("watcher already started")

// Watcher maintains the artifact registry of one project.
type Watcher struct {
	opts       Options
	network    string
	configFile string

	// Owned by the loop goroutine once started.
	desc      *project.Descriptor
	registry  *registry.Registry
	levels    [numLevels]level
	genSeq    uint64
	debouncer *Debouncer

	events  chan levelEvent
	reloads chan struct{}

	mu        sync.RWMutex
	published *project.Descriptor
	index     map[string]int
	states    [numLevels]State
	listeners map[int]Listener
	nextID    int

	lifeMu sync.Mutex
	life   lifecycle
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watcher for desc. network selects the deployment record used
// to decorate artifacts; it may be empty.
func New(desc *project.Descriptor, network string, opts Options) (*Watcher, error) {
	if desc == nil || desc.ConfigFile == "" {
		return nil, fmt.Errorf("project descriptor with a config file is required")
	}

	if opts.Loader == nil {
		opts.Loader = project.FileLoader{}
	}

	if opts.Notifier == nil {
		opts.Notifier = FSNotifier{}
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w := &Watcher{
		opts:       opts,
		network:    network,
		configFile: desc.ConfigFile,
		desc:       desc.Clone(),
		events:     make(chan levelEvent, 64),
		reloads:    make(chan struct{}, 1),
		listeners:  make(map[int]Listener),
		done:       make(chan struct{}),
	}

	w.desc.Artifacts = nil

	w.registry = registry.New(registry.Options{
		Network:          network,
		SchemaConstraint: opts.SchemaConstraint,
		OnParseError:     w.report,
		Logger:           opts.Logger,
	})

	w.debouncer = NewDebouncer(opts.Debounce, func(string) {
		select {
		case w.reloads <- struct{}{}:
		default:
		}
	})

	w.publish()

	return w, nil
}

// Start runs the cascade once and begins processing events in the
// background. It returns ErrAlreadyStarted on a second call.
func (w *Watcher) Start(ctx context.Context) error {
	w.lifeMu.Lock()
	defer w.lifeMu.Unlock()

	if w.life != lifeNew {
		return ErrAlreadyStarted
	}

	w.life = lifeRunning

	ctx, w.cancel = context.WithCancel(ctx)

	w.opts.Logger.Info("starting project watch",
		slog.String("config", w.configFile),
		slog.String("network", w.network),
	)

	w.install(LevelConfig, filepath.Dir(w.configFile))
	w.startParent()

	go w.loop(ctx)

	return nil
}

// Run starts the watcher and blocks until ctx is cancelled, then tears the
// cascade down.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	w.Stop()

	return nil
}

// Stop tears down every level and waits for the loop to exit. It is safe to
// call multiple times, and before Start.
func (w *Watcher) Stop() {
	w.lifeMu.Lock()

	prev := w.life
	w.life = lifeStopped

	w.lifeMu.Unlock()

	if prev != lifeRunning {
		if prev == lifeStopped {
			<-w.done
		} else {
			close(w.done)
		}

		return
	}

	w.cancel()
	<-w.done
}

// Done is closed once the watcher has fully stopped.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Snapshot returns a fresh copy of the current project state, with
// unparseable artifacts left out.
func (w *Watcher) Snapshot() *project.Descriptor {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.published.Clone()
}

// Index returns a copy of the filename index published with the current
// snapshot. Positions include unparseable artifacts.
func (w *Watcher) Index() map[string]int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]int, len(w.index))
	for k, v := range w.index {
		out[k] = v
	}

	return out
}

// State reports the activation state of l.
func (w *Watcher) State(l Level) State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if l < 0 || l >= numLevels {
		return StateIdle
	}

	return w.states[l]
}

// Levels reports the activation state of every level, config first.
func (w *Watcher) Levels() map[Level]State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[Level]State, numLevels)
	for l := LevelConfig; l < numLevels; l++ {
		out[l] = w.states[l]
	}

	return out
}

// Subscribe registers fn for project-details-update notifications and
// returns a function that removes it.
func (w *Watcher) Subscribe(fn Listener) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.listeners[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		delete(w.listeners, id)
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.teardown()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.events:
			w.dispatch(ev)
		case <-w.reloads:
			w.reload()
		}
	}
}

func (w *Watcher) teardown() {
	w.debouncer.Stop()
	w.stopFrom(LevelConfig)
	w.publish()

	w.opts.Logger.Info("project watch stopped", slog.String("config", w.configFile))
}

func (w *Watcher) dispatch(ev levelEvent) {
	lv := &w.levels[ev.level]
	if lv.handle == nil || lv.gen != ev.gen {
		return
	}

	if ev.err != nil {
		w.opts.Logger.Warn("watch error",
			slog.String("level", ev.level.String()),
			slog.String("error", ev.err.Error()),
		)

		return
	}

	cfg := w.desc.Config

	switch ev.level {
	case LevelConfig:
		if matches(ev.event, w.configFile) {
			w.debouncer.Trigger(ev.event.Name)
		}
	case LevelParent:
		if matches(ev.event, cfg.BuildDirectory) {
			w.startBuild()
		}
	case LevelBuild:
		if matches(ev.event, cfg.ContractsBuildDirectory) {
			w.startContracts()
		}
	case LevelContracts:
		// The directory itself vanishing is handled by the build level.
		if !isRelevant(ev.event) || filepath.Clean(ev.event.Name) == lv.path {
			return
		}

		if op := w.registry.Apply(ev.event.Name); op != registry.OpNone {
			w.opts.Logger.Debug("artifact changed",
				slog.String("file", filepath.Base(ev.event.Name)),
				slog.String("op", op.String()),
			)
			w.emit()
		}
	}
}

// reload re-reads the project configuration and restarts the cascade below
// the config level.
func (w *Watcher) reload() {
	w.stopFrom(LevelParent)

	desc, err := w.opts.Loader.Load(w.configFile)
	if err != nil {
		w.report(&ConfigLoadError{Path: w.configFile, Err: err})
		w.publish()

		return
	}

	w.desc = desc.Clone()
	w.desc.Artifacts = nil

	w.opts.Logger.Info("project config reloaded",
		slog.String("build", w.desc.Config.BuildDirectory),
		slog.String("contracts", w.desc.Config.ContractsBuildDirectory),
	)

	w.publish()
	w.startParent()
}

func (w *Watcher) startParent() {
	w.stopFrom(LevelParent)

	if !w.install(LevelParent, filepath.Dir(w.desc.Config.BuildDirectory)) {
		return
	}

	w.startBuild()
}

func (w *Watcher) startBuild() {
	w.stopFrom(LevelBuild)

	dir := w.desc.Config.BuildDirectory
	if !isDir(dir) {
		w.opts.Logger.Debug("build directory absent, idle", slog.String("dir", dir))
		w.emit()

		return
	}

	if !w.install(LevelBuild, dir) {
		return
	}

	w.startContracts()
}

func (w *Watcher) startContracts() {
	w.stopFrom(LevelContracts)

	dir := w.desc.Config.ContractsBuildDirectory
	if isDir(dir) {
		// Install before scanning so nothing written during the scan is
		// missed; replayed events reconcile against disk.
		w.install(LevelContracts, dir)

		if err := w.registry.Load(dir); err != nil {
			w.opts.Logger.Warn("scanning contracts directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	} else {
		w.opts.Logger.Debug("contracts directory absent, idle", slog.String("dir", dir))
	}

	w.emit()
}

// stopFrom closes level l and every level below it, lowest first.
func (w *Watcher) stopFrom(l Level) {
	for i := numLevels - 1; i >= l; i-- {
		lv := &w.levels[i]

		if lv.handle != nil {
			close(lv.stop)

			if err := lv.handle.Close(); err != nil {
				w.opts.Logger.Debug("closing watch",
					slog.String("level", i.String()),
					slog.String("error", err.Error()),
				)
			}
		}

		*lv = level{}
		w.setState(i, StateIdle)

		if i == LevelContracts {
			w.registry.Reset()
		}
	}
}

// install opens a watch for level l on path and starts forwarding its events
// into the loop. On failure the level stays idle.
func (w *Watcher) install(l Level, path string) bool {
	h, err := w.opts.Notifier.Watch(path)
	if err != nil {
		w.report(&WatchInstallError{Level: l, Path: path, Err: err})
		return false
	}

	w.genSeq++

	stop := make(chan struct{})
	w.levels[l] = level{path: filepath.Clean(path), handle: h, gen: w.genSeq, stop: stop}
	w.setState(l, StateActive)

	go w.forward(l, w.genSeq, h, stop)

	w.opts.Logger.Debug("watch installed", slog.String("level", l.String()), slog.String("path", path))

	return true
}

func (w *Watcher) forward(l Level, gen uint64, h Handle, stop <-chan struct{}) {
	events, errs := h.Events(), h.Errors()

	for events != nil || errs != nil {
		var ev levelEvent

		select {
		case <-stop:
			return
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}

			ev = levelEvent{level: l, gen: gen, event: e}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			ev = levelEvent{level: l, gen: gen, err: err}
		}

		select {
		case w.events <- ev:
		case <-stop:
			return
		}
	}
}

func (w *Watcher) report(err error) {
	w.opts.Logger.Warn("project watch degraded", slog.String("error", err.Error()))

	if w.opts.OnError != nil {
		w.opts.OnError(err)
	}
}

// publish stores the current state for Snapshot without notifying.
func (w *Watcher) publish() *project.Descriptor {
	snap := w.desc.Clone()
	snap.Artifacts = w.registry.Artifacts()
	index := w.registry.Index()

	w.mu.Lock()
	w.published = snap
	w.index = index
	w.mu.Unlock()

	return snap
}

// emit publishes the current state and notifies every listener.
func (w *Watcher) emit() {
	snap := w.publish()

	// Listeners run in subscription order.
	w.mu.RLock()
	listeners := make([]Listener, 0, len(w.listeners))
	for _, id := range slices.Sorted(maps.Keys(w.listeners)) {
		listeners = append(listeners, w.listeners[id])
	}
	w.mu.RUnlock()

	for _, fn := range listeners {
		fn(Update{Event: EventProjectDetailsUpdate, Snapshot: snap.Clone()})
	}
}

func (w *Watcher) setState(l Level, s State) {
	w.mu.Lock()
	w.states[l] = s
	w.mu.Unlock()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
