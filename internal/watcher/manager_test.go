package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magic-framework/magic/internal/errors"
	"github.com/magic-framework/magic/internal/logging"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (r *recordingLogger) Debug(context.Context, string, ...interface{}) {}
func (r *recordingLogger) Info(context.Context, string, ...interface{})  {}
func (r *recordingLogger) Error(context.Context, error, string, ...interface{}) {}

func (r *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, msg)
}

func (r *recordingLogger) With(...interface{}) logging.Logger    { return r }
func (r *recordingLogger) WithComponent(string) logging.Logger { return r }

func (r *recordingLogger) warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warns...)
}

type project struct {
	dir     string
	assets  string
	systems string
	config  string
}

func newProject(t *testing.T) project {
	t.Helper()
	dir := t.TempDir()
	p := project{
		dir:     dir,
		assets:  filepath.Join(dir, "assets"),
		systems: filepath.Join(dir, "systems"),
		config:  filepath.Join(dir, "magic.config"),
	}
	require.NoError(t, os.Mkdir(p.assets, 0o755))
	require.NoError(t, os.Mkdir(p.systems, 0o755))
	require.NoError(t, os.WriteFile(p.config, []byte("dist public\n"), 0o644))
	return p
}

func (p project) roots() []WatchRoot {
	return []WatchRoot{
		{ID: AssetsRoot, Path: p.assets},
		{ID: SourceRoot, Path: p.systems},
		{ID: ConfigFile, Path: p.config},
	}
}

func newTestManager(t *testing.T, logger logging.Logger) (*Manager, chan RawEvent) {
	t.Helper()
	events := make(chan RawEvent, 256)
	m := NewManager(ManagerOptions{
		Sink: EventSinkFunc(func(e RawEvent) {
			select {
			case events <- e:
			default:
			}
		}),
		Logger: logger,
	})
	t.Cleanup(m.CloseAll)
	return m, events
}

func waitForEvent(t *testing.T, events <-chan RawEvent, match func(RawEvent) bool) RawEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			if match(e) {
				return e
			}
		case <-deadline:
			t.Fatal("timed out waiting for raw event")
			return RawEvent{}
		}
	}
}

func drain(events <-chan RawEvent, wait time.Duration) []RawEvent {
	var got []RawEvent
	deadline := time.After(wait)
	for {
		select {
		case e := <-events:
			got = append(got, e)
		case <-deadline:
			return got
		}
	}
}

func TestCreateAllSkipsMissingOptionalRoot(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.Remove(p.assets))

	logger := &recordingLogger{}
	m, _ := newTestManager(t, logger)

	handles, err := m.CreateAll(p.roots())
	require.NoError(t, err)
	require.Len(t, handles, 2)

	assert.Equal(t, []WatchRoot{
		{ID: SourceRoot, Path: p.systems},
		{ID: ConfigFile, Path: p.config},
	}, m.Active())
	assert.Equal(t, []string{"No assets directory found, not watching it"}, logger.warnings())
}

func TestCreateAllRequiredRootMissing(t *testing.T) {
	p := newProject(t)
	missing := filepath.Join(p.dir, "nope")

	m, _ := newTestManager(t, nil)
	roots := p.roots()
	roots[0] = WatchRoot{ID: AssetsRoot, Path: missing, Required: true}

	handles, err := m.CreateAll(roots)
	require.Error(t, err)
	assert.Nil(t, handles)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, &errors.MagicError{Kind: errors.KindFatalStartup, Code: errors.ErrCodeRequiredRootMissing})
	assert.Empty(t, m.Active())
}

func TestCreateAllRequiredRootMissingKeepsExistingHandles(t *testing.T) {
	p := newProject(t)
	m, _ := newTestManager(t, nil)

	_, err := m.CreateAll(p.roots())
	require.NoError(t, err)

	_, err = m.CreateAll([]WatchRoot{{ID: SourceRoot, Path: filepath.Join(p.dir, "gone"), Required: true}})
	require.Error(t, err)
	assert.Len(t, m.Active(), 3)
}

func TestMissingConfigFileIsWatchedThroughParent(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.Remove(p.config))

	logger := &recordingLogger{}
	m, events := newTestManager(t, logger)

	_, err := m.CreateAll(p.roots())
	require.NoError(t, err)
	assert.Len(t, m.Active(), 3)
	assert.Empty(t, logger.warnings())

	require.NoError(t, os.WriteFile(p.config, []byte("systems game\n"), 0o644))
	e := waitForEvent(t, events, func(e RawEvent) bool { return e.Root == ConfigFile })
	assert.Equal(t, p.config, e.Path)
}

func TestEventsAreTaggedWithTheirRoot(t *testing.T) {
	p := newProject(t)
	m, events := newTestManager(t, nil)

	_, err := m.CreateAll(p.roots())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p.systems, "player.ts"), []byte("export {}"), 0o644))
	e := waitForEvent(t, events, func(e RawEvent) bool { return e.Root == SourceRoot })
	assert.Equal(t, filepath.Join(p.systems, "player.ts"), e.Path)
	assert.False(t, e.Time.IsZero())

	require.NoError(t, os.WriteFile(filepath.Join(p.assets, "logo.svg"), []byte("<svg/>"), 0o644))
	waitForEvent(t, events, func(e RawEvent) bool { return e.Root == AssetsRoot })

	require.NoError(t, os.WriteFile(p.config, []byte("dist out\n"), 0o644))
	waitForEvent(t, events, func(e RawEvent) bool { return e.Root == ConfigFile })
}

func TestConfigRootIgnoresSiblings(t *testing.T) {
	p := newProject(t)
	m, events := newTestManager(t, nil)

	_, err := m.CreateAll([]WatchRoot{{ID: ConfigFile, Path: p.config}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p.dir, "README.md"), []byte("# hi"), 0o644))
	assert.Empty(t, drain(events, 200*time.Millisecond))
}

func TestRecursiveWatchPicksUpNewDirectories(t *testing.T) {
	p := newProject(t)
	m, events := newTestManager(t, nil)

	_, err := m.CreateAll(p.roots())
	require.NoError(t, err)

	nested := filepath.Join(p.systems, "ai")
	require.NoError(t, os.Mkdir(nested, 0o755))
	waitForEvent(t, events, func(e RawEvent) bool { return e.Path == nested })

	target := filepath.Join(nested, "brain.ts")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("export {}"), 0o644)
		for _, e := range drain(events, 50*time.Millisecond) {
			if e.Path == target {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFilteredPathsProduceNoEvents(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.MkdirAll(filepath.Join(p.systems, "node_modules", "lib"), 0o755))

	m, events := newTestManager(t, nil)
	_, err := m.CreateAll(p.roots())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p.systems, "node_modules", "lib", "index.js"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p.systems, ".player.ts.swp"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(p.systems, "player.ts~"), nil, 0o644))

	assert.Empty(t, drain(events, 200*time.Millisecond))
}

func TestCloseAllStopsDelivery(t *testing.T) {
	p := newProject(t)
	m, events := newTestManager(t, nil)

	_, err := m.CreateAll(p.roots())
	require.NoError(t, err)

	m.CloseAll()
	assert.Empty(t, m.Active())

	require.NoError(t, os.WriteFile(filepath.Join(p.systems, "late.ts"), nil, 0o644))
	assert.Empty(t, drain(events, 200*time.Millisecond))

	// Closing twice is harmless.
	m.CloseAll()
}

func TestClosedHandleIgnoresNewDirectory(t *testing.T) {
	p := newProject(t)
	logger := &recordingLogger{}
	m, events := newTestManager(t, logger)

	handles, err := m.CreateAll(p.roots())
	require.NoError(t, err)
	var source *Handle
	for _, h := range handles {
		if h.Root().ID == SourceRoot {
			source = h
		}
	}
	require.NotNil(t, source)

	m.CloseAll()
	nested := filepath.Join(p.systems, "levels")
	require.NoError(t, os.Mkdir(nested, 0o755))

	// An event already read from fsnotify when CloseAll ran.
	source.handle(fsnotify.Event{Name: nested, Op: fsnotify.Create})

	assert.Empty(t, logger.warnings())
	assert.Empty(t, drain(events, 50*time.Millisecond))
}

func TestCreateAllReplacesLiveHandle(t *testing.T) {
	p := newProject(t)
	m, events := newTestManager(t, nil)

	_, err := m.CreateAll([]WatchRoot{{ID: SourceRoot, Path: p.systems}})
	require.NoError(t, err)

	moved := filepath.Join(p.dir, "game")
	require.NoError(t, os.Mkdir(moved, 0o755))
	_, err = m.CreateAll([]WatchRoot{{ID: SourceRoot, Path: moved}})
	require.NoError(t, err)

	assert.Equal(t, []WatchRoot{{ID: SourceRoot, Path: moved}}, m.Active())

	require.NoError(t, os.WriteFile(filepath.Join(p.systems, "old.ts"), nil, 0o644))
	for _, e := range drain(events, 200*time.Millisecond) {
		assert.NotEqual(t, filepath.Join(p.systems, "old.ts"), e.Path)
	}

	require.NoError(t, os.WriteFile(filepath.Join(moved, "new.ts"), nil, 0o644))
	waitForEvent(t, events, func(e RawEvent) bool { return e.Path == filepath.Join(moved, "new.ts") })
}

func TestRootIDString(t *testing.T) {
	assert.Equal(t, "assets", AssetsRoot.String())
	assert.Equal(t, "source", SourceRoot.String())
	assert.Equal(t, "config", ConfigFile.String())
	assert.Equal(t, "unknown", RootID(9).String())
}
