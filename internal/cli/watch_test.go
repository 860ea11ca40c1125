package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/artifactwatch/internal/artifact"
	"github.com/hupe1980/artifactwatch/internal/logging"
	"github.com/hupe1980/artifactwatch/internal/project"
	"github.com/hupe1980/artifactwatch/internal/render"
	"github.com/hupe1980/artifactwatch/internal/watch"
)

func TestWatch_RequiresProject(t *testing.T) {
	_, _, err := executeCommand("watch")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "--project")
}

func TestWatch_RejectsArgs(t *testing.T) {
	_, _, err := executeCommand("watch", "extra")
	require.Error(t, err)
}

func TestWatch_WritesSnapshotsUntilCancelled(t *testing.T) {
	configFile, contracts := writeTestProject(t)
	writeArtifact(t, contracts, "A.json", "Alpha", "0xAA")

	out := filepath.Join(t.TempDir(), "snapshot.json")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	cmd := NewRootCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{
		"--network", "5", "--log-level", "error",
		"watch", "-p", configFile, "-f", "json", "-o", out,
	})

	errc := make(chan error, 1)

	go func() { errc <- cmd.ExecuteContext(ctx) }()

	readOut := func() string {
		data, _ := os.ReadFile(out)
		return string(data)
	}

	require.Eventually(t, func() bool {
		return strings.Contains(readOut(), "Alpha")
	}, 5*time.Second, 20*time.Millisecond)

	writeArtifact(t, contracts, "B.json", "Beta", "0xBB")

	require.Eventually(t, func() bool {
		return strings.Contains(readOut(), "Beta")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}

func testUpdate(arts ...artifact.Artifact) watch.Update {
	return watch.Update{
		Event: watch.EventProjectDetailsUpdate,
		Snapshot: &project.Descriptor{
			ConfigFile: "/p/project.yaml",
			Config: project.Config{
				BuildDirectory:          "/p/build",
				ContractsBuildDirectory: "/p/build/contracts",
			},
			Artifacts: arts,
		},
	}
}

func TestPrinter_FullRenderingWithoutDiff(t *testing.T) {
	var buf bytes.Buffer

	p := &printer{
		format: render.FormatText,
		out:    render.NewStreamWriter(&buf),
		diffTo: &buf,
		logger: logging.Discard(),
	}

	require.NoError(t, p.print(testUpdate()))
	require.NoError(t, p.print(testUpdate(artifact.Artifact{"contractName": "A", "address": "0xAA"})))

	assert.Equal(t, 2, strings.Count(buf.String(), "project:"))
	assert.Contains(t, buf.String(), "0xAA")
}

func TestPrinter_DiffAfterFirstRendering(t *testing.T) {
	var buf bytes.Buffer

	p := &printer{
		format: render.FormatText,
		diff:   true,
		out:    render.NewStreamWriter(&buf),
		diffTo: &buf,
		logger: logging.Discard(),
	}

	require.NoError(t, p.print(testUpdate()))
	buf.Reset()

	require.NoError(t, p.print(testUpdate(artifact.Artifact{"contractName": "A", "address": "0xAA"})))

	assert.Contains(t, buf.String(), "--- previous")
	assert.Contains(t, buf.String(), "+++ current")
	assert.Contains(t, buf.String(), "0xAA")

	buf.Reset()
	require.NoError(t, p.print(testUpdate(artifact.Artifact{"contractName": "A", "address": "0xAA"})))
	assert.Contains(t, buf.String(), "No differences found.")
}

func TestPrinter_RunStopsOnCancel(t *testing.T) {
	var (
		mu  sync.Mutex
		buf bytes.Buffer
	)

	p := &printer{
		format: render.FormatJSON,
		out:    render.NewStreamWriter(writerFunc(func(b []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()

			return buf.Write(b)
		})),
		logger: logging.Discard(),
	}

	ctx, cancel := context.WithCancel(t.Context())
	updates := make(chan watch.Update, 1)
	updates <- testUpdate()

	done := make(chan error, 1)

	go func() { done <- p.run(ctx, updates) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return buf.Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
