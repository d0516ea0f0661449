package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/magic-framework/magic/internal/clock"
	"github.com/magic-framework/magic/internal/errors"
	"github.com/magic-framework/magic/internal/logging"
)

// Handle is a live watcher bound to exactly one WatchRoot. Handles are
// created and closed only by the Manager.
type Handle struct {
	root    WatchRoot
	dir     string // directory the watcher is rooted at
	only    string // base name filter, set for file roots
	watcher *fsnotify.Watcher
	sink    EventSink
	filters []FileFilter
	clock   clock.Clock
	logger  logging.Logger

	stop chan struct{}
	done chan struct{}
}

// Root returns the root the handle watches.
func (h *Handle) Root() WatchRoot {
	return h.root
}

// ManagerOptions configure a Manager.
type ManagerOptions struct {
	Sink    EventSink
	Filters []FileFilter
	Clock   clock.Clock
	Logger  logging.Logger
}

// Manager owns the set of active watchers, at most one per RootID.
type Manager struct {
	mu      sync.Mutex
	handles map[RootID]*Handle
	opts    ManagerOptions
}

// NewManager creates a Manager delivering raw events to opts.Sink.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Filters == nil {
		opts.Filters = DefaultFilters()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Sink == nil {
		opts.Sink = EventSinkFunc(func(RawEvent) {})
	}

	return &Manager{
		handles: make(map[RootID]*Handle),
		opts:    opts,
	}
}

// CreateAll opens one watcher per root. Required roots are checked before any
// watcher is created, so a missing required root leaves nothing behind. An
// optional root that is missing or cannot be watched is skipped with a
// warning. A live handle for any of the given roots is closed first.
func (m *Manager) CreateAll(roots []WatchRoot) ([]*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := context.Background()

	for _, root := range roots {
		if !root.Required {
			continue
		}
		if _, err := os.Stat(root.Path); err != nil {
			return nil, errors.NewFatalStartupError(errors.ErrCodeRequiredRootMissing,
				fmt.Sprintf("required %s root is missing", root.ID), err).WithPath(root.Path)
		}
	}

	for _, root := range roots {
		m.closeLocked(root.ID)
	}

	created := make([]*Handle, 0, len(roots))
	for _, root := range roots {
		handle, err := m.open(root)
		if err == nil {
			m.handles[root.ID] = handle
			created = append(created, handle)
			m.opts.Logger.Debug(ctx, "Watching root", "root", root.ID.String(), "path", root.Path)
			continue
		}

		if root.Required {
			for _, h := range created {
				m.closeLocked(h.root.ID)
			}
			return nil, errors.NewFatalStartupError(errors.ErrCodeWatcherCreate,
				fmt.Sprintf("cannot watch %s root", root.ID), err).WithPath(root.Path)
		}

		errors.Report(ctx, m.opts.Logger, skipWarning(root, err))
	}

	return created, nil
}

func skipWarning(root WatchRoot, err error) error {
	if os.IsNotExist(err) {
		return errors.NewSoftSkipWarning(root.Path, fmt.Sprintf("No %s directory found, not watching it", root.ID), nil)
	}
	return errors.NewSoftSkipWarning(root.Path, fmt.Sprintf("Cannot watch %s root, skipping it", root.ID), err)
}

// CloseAll closes every live handle and waits for its event forwarding to
// stop. No raw event is delivered after CloseAll returns.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.handles {
		m.closeLocked(id)
	}
}

// Active returns the roots that currently have a live handle, ordered by ID.
func (m *Manager) Active() []WatchRoot {
	m.mu.Lock()
	defer m.mu.Unlock()

	roots := make([]WatchRoot, 0, len(m.handles))
	for _, h := range m.handles {
		roots = append(roots, h.root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })
	return roots
}

func (m *Manager) closeLocked(id RootID) {
	h, ok := m.handles[id]
	if !ok {
		return
	}
	delete(m.handles, id)
	h.close()
}

// open creates the fsnotify watcher for root. Directories are watched
// recursively. A file is watched through its parent directory so that
// editors replacing the file on save are still observed; a config file that
// does not exist yet is watched the same way.
func (m *Manager) open(root WatchRoot) (*Handle, error) {
	info, err := os.Stat(root.Path)
	dir, only := root.Path, ""
	switch {
	case err == nil && !info.IsDir():
		dir, only = filepath.Dir(root.Path), filepath.Base(root.Path)
	case os.IsNotExist(err) && root.ID == ConfigFile:
		dir, only = filepath.Dir(root.Path), filepath.Base(root.Path)
		if _, statErr := os.Stat(dir); statErr != nil {
			return nil, statErr
		}
	case err != nil:
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	h := &Handle{
		root:    root,
		dir:     dir,
		only:    only,
		watcher: w,
		sink:    m.opts.Sink,
		filters: m.opts.Filters,
		clock:   m.opts.Clock,
		logger:  m.opts.Logger.WithComponent("watcher"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if only != "" {
		err = w.Add(dir)
	} else {
		err = h.addRecursive(dir)
	}
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	go h.run()
	return h, nil
}

func (h *Handle) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Vanished or unreadable subdirectory.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && !h.accepts(path) {
			return filepath.SkipDir
		}
		return h.watcher.Add(path)
	})
}

func (h *Handle) accepts(path string) bool {
	rel, err := filepath.Rel(h.dir, path)
	if err != nil {
		rel = path
	}
	if h.only != "" && rel != h.only {
		return false
	}
	return allowed(h.filters, rel)
}

func (h *Handle) run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handle(event)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn(context.Background(), err, "File watcher error", "root", h.root.ID.String())
		}
	}
}

func (h *Handle) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || !h.accepts(event.Name) {
		return
	}

	if h.stopped() {
		return
	}

	if h.only == "" && event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// A close racing the walk fails it with fsnotify.ErrClosed.
			if err := h.addRecursive(event.Name); err != nil && !h.stopped() {
				h.logger.Warn(context.Background(), err, "Cannot watch new directory", "path", event.Name)
			}
		}
	}

	if h.stopped() {
		return
	}

	h.sink.Post(RawEvent{
		Root: h.root.ID,
		Path: event.Name,
		Type: eventTypeOf(event.Op),
		Time: h.clock.Now(),
	})
}

func (h *Handle) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

func (h *Handle) close() {
	close(h.stop)
	_ = h.watcher.Close()
	<-h.done
}
