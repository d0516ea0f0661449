package devloop

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-framework/magic/internal/build"
	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/watcher"
)

// These tests run the loop against real watchers in a temporary project.

type liveLoop struct {
	dir     string
	ctrl    *Controller
	builder *fakeBuilder
	logger  *recordingLogger
	seen    *transitions
}

func startLive(t *testing.T, dir string) *liveLoop {
	t.Helper()

	l := &liveLoop{
		dir:     dir,
		builder: &fakeBuilder{log: &callLog{}, outcome: build.Outcome{Success: true}},
		logger:  &recordingLogger{},
		seen:    &transitions{},
	}
	l.ctrl = New(Deps{
		Store:   config.NewStore(config.Options{ProjectDir: dir}),
		Builder: l.builder,
		Logger:  l.logger,
		Tick:    10 * time.Millisecond,
		Quiet:   watcher.QuietWindow,
	}, WithObserver(l.seen.observe))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("controller did not stop")
		}
	})

	require.Eventually(t, func() bool { return l.ctrl.State() == Watching }, 5*time.Second, 5*time.Millisecond)
	return l
}

func newLiveProject(t *testing.T, withAssets bool) string {
	t.Helper()
	dir := t.TempDir()
	if withAssets {
		require.NoError(t, os.Mkdir(filepath.Join(dir, "assets"), 0o755))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "systems"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte("dist public\n"), 0o644))
	return dir
}

func activeIDs(roots []watcher.WatchRoot) []watcher.RootID {
	ids := make([]watcher.RootID, 0, len(roots))
	for _, r := range roots {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestMissingAssetsIsSkipped(t *testing.T) {
	dir := newLiveProject(t, false)
	l := startLive(t, dir)

	assert.Equal(t, []string{"No assets directory found, not watching it"}, l.logger.messages("warn"))
	assert.Equal(t, []watcher.RootID{watcher.SourceRoot, watcher.ConfigFile}, activeIDs(l.ctrl.Active()))
	assert.Equal(t, Watching, l.ctrl.State())
}

func TestRapidSavesRebuildOnce(t *testing.T) {
	dir := newLiveProject(t, true)
	l := startLive(t, dir)

	file := filepath.Join(dir, "systems", "player.ts")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(file, []byte("export const speed = "+string(rune('1'+i))+";\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return l.builder.count() == 1 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(2 * watcher.QuietWindow)

	assert.Equal(t, 1, l.builder.count())
	assert.Equal(t, 1, l.seen.count(Rebuilding))
}

func TestSourcePathChangeMovesWatchers(t *testing.T) {
	dir := newLiveProject(t, true)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "game"), 0o755))
	l := startLive(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte("dist public\nsystems game\n"), 0o644))

	newSource := filepath.Join(dir, "game")
	require.Eventually(t, func() bool {
		for _, r := range l.ctrl.Active() {
			if r.ID == watcher.SourceRoot && r.Path == newSource {
				return l.ctrl.State() == Watching
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, l.seen.count(Restarting))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "systems", "old.ts"), []byte("stale\n"), 0o644))
	time.Sleep(2 * watcher.QuietWindow)
	assert.Zero(t, l.builder.count())

	require.NoError(t, os.WriteFile(filepath.Join(newSource, "new.ts"), []byte("fresh\n"), 0o644))
	require.Eventually(t, func() bool { return l.builder.count() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, l.seen.count(Restarting))
}

func TestRequiredRootMissingStopsStartup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "assets"), 0o755))

	ctrl := New(Deps{
		Store:   config.NewStore(config.Options{ProjectDir: dir, Strict: true}),
		Builder: &fakeBuilder{log: &callLog{}},
	})

	err := ctrl.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "required source root is missing")
	assert.Empty(t, ctrl.Active())
	assert.Equal(t, Stopped, ctrl.State())
}
