package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/artifactwatch/internal/logging"
	"github.com/hupe1980/artifactwatch/internal/project"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

// ---------------------------------------------------------------------------
// fakeNotifier delivers events only when a test sends them, which keeps
// cascade tests independent of platform event timing.
// ---------------------------------------------------------------------------

type fakeNotifier struct {
	mu      sync.Mutex
	handles map[string][]*fakeHandle
	fail    map[string]error
	live    atomic.Int32
	opened  atomic.Int32
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		handles: make(map[string][]*fakeHandle),
		fail:    make(map[string]error),
	}
}

func (n *fakeNotifier) Watch(path string) (Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	path = filepath.Clean(path)

	if err, ok := n.fail[path]; ok {
		return nil, err
	}

	h := &fakeHandle{
		n:      n,
		events: make(chan fsnotify.Event, 32),
		errs:   make(chan error, 4),
	}

	n.handles[path] = append(n.handles[path], h)
	n.live.Add(1)
	n.opened.Add(1)

	return h, nil
}

func (n *fakeNotifier) failOn(path string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.fail[filepath.Clean(path)] = err
}

// send delivers an event for name inside dir to every open handle on dir.
// It reports how many handles received it.
func (n *fakeNotifier) send(dir, name string, op fsnotify.Op) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir = filepath.Clean(dir)
	ev := fsnotify.Event{Name: filepath.Join(dir, name), Op: op}

	delivered := 0

	for _, h := range n.handles[dir] {
		if h.closed.Load() {
			continue
		}

		h.events <- ev
		delivered++
	}

	return delivered
}

func (n *fakeNotifier) sendError(dir string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, h := range n.handles[filepath.Clean(dir)] {
		if !h.closed.Load() {
			h.errs <- err
		}
	}
}

type fakeHandle struct {
	n      *fakeNotifier
	events chan fsnotify.Event
	errs   chan error
	closed atomic.Bool
}

func (h *fakeHandle) Events() <-chan fsnotify.Event { return h.events }
func (h *fakeHandle) Errors() <-chan error          { return h.errs }

func (h *fakeHandle) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.n.live.Add(-1)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Project fixtures
// ---------------------------------------------------------------------------

type testProject struct {
	root      string
	config    string
	build     string
	contracts string
}

func newTestProject(t *testing.T) *testProject {
	t.Helper()

	root := t.TempDir()
	p := &testProject{
		root:      root,
		config:    filepath.Join(root, "project.yaml"),
		build:     filepath.Join(root, "build"),
		contracts: filepath.Join(root, "build", "contracts"),
	}

	p.writeConfig(t, "build_directory: build\n")

	return p
}

func (p *testProject) writeConfig(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(p.config, []byte(content), 0o600))
}

func (p *testProject) descriptor(t *testing.T) *project.Descriptor {
	t.Helper()

	d, err := project.FileLoader{}.Load(p.config)
	require.NoError(t, err)

	return d
}

func (p *testProject) mkContracts(t *testing.T) {
	t.Helper()
	require.NoError(t, os.MkdirAll(p.contracts, 0o755))
}

func (p *testProject) writeArtifact(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(p.contracts, name), []byte(body), 0o644))
}

func contractJSON(name, network, addr string) string {
	return fmt.Sprintf(`{"contractName":%q,"schemaVersion":"3.4.0","networks":{%q:{"address":%q,"transactionHash":"0xT%s"}}}`,
		name, network, addr, name)
}

// ---------------------------------------------------------------------------
// Watcher harness
// ---------------------------------------------------------------------------

type recorder struct {
	mu      sync.Mutex
	updates []Update
	errs    []error
}

func (r *recorder) listen(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates = append(r.updates, u)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errs = append(r.errs, err)
}

func (r *recorder) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.updates)
}

func (r *recorder) last() Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.updates[len(r.updates)-1]
}

func hasErrorAs[T error](r *recorder) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, err := range r.errs {
		var target T
		if errors.As(err, &target) {
			return true
		}
	}

	return false
}

func quietLogger() *slog.Logger {
	return logging.Discard()
}

func startWatcher(t *testing.T, desc *project.Descriptor, n Notifier, rec *recorder) *Watcher {
	t.Helper()

	opts := DefaultOptions()
	opts.Notifier = n
	opts.Debounce = 0
	opts.Logger = quietLogger()
	opts.OnError = rec.onError

	w, err := New(desc, "5", opts)
	require.NoError(t, err)

	w.Subscribe(rec.listen)

	require.NoError(t, w.Start(t.Context()))
	t.Cleanup(w.Stop)

	return w
}

func artifactNames(d *project.Descriptor) []string {
	names := make([]string, 0, len(d.Artifacts))
	for _, a := range d.Artifacts {
		names = append(names, a.ContractName())
	}

	return names
}
