package devloop

import (
	"context"
	"sync"
	"time"

	"github.com/magic-framework/magic/internal/build"
	"github.com/magic-framework/magic/internal/clock"
	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/errors"
	"github.com/magic-framework/magic/internal/logging"
	"github.com/magic-framework/magic/internal/watcher"
)

// ConfigStore is the configuration the loop reads on start and restart.
type ConfigStore interface {
	Reload() (config.Values, error)
	CurrentRoots() config.Roots
	ProjectDir() string
}

// Builder runs one rebuild. Calls must not overlap.
type Builder interface {
	Rebuild(ctx context.Context, s build.Settings) build.Outcome
}

// Notifier is told about every finished rebuild and about the settings
// derived on start and on every restart.
type Notifier interface {
	BuildCompleted(outcome build.Outcome)
	SettingsChanged(s build.Settings)
}

// WatchSet owns the filesystem watchers. *watcher.Manager implements it.
type WatchSet interface {
	CreateAll(roots []watcher.WatchRoot) ([]*watcher.Handle, error)
	CloseAll()
	Active() []watcher.WatchRoot
}

// Coalescer turns raw events into coalesced signals. *watcher.Debouncer
// implements it.
type Coalescer interface {
	Start(ctx context.Context)
	Stop()
	Forget()
}

// Deps are the collaborators of a Controller. Store and Builder are
// required. Unless both WatchSet and Coalescer are given, they are replaced
// by a watcher.Manager feeding a watcher.Debouncer that delivers to the
// Controller.
type Deps struct {
	Store    ConfigStore
	Builder  Builder
	Notifier Notifier
	Logger   logging.Logger

	WatchSet  WatchSet
	Coalescer Coalescer

	// Used only when the default watch set is built.
	Clock   clock.Clock
	Tick    time.Duration
	Quiet   time.Duration
	Filters []watcher.FileFilter
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn to be called on every state transition. fn runs
// on the loop goroutine.
func WithObserver(fn func(from, to State)) Option {
	return func(c *Controller) {
		c.observers = append(c.observers, fn)
	}
}

// WithInitialBuild makes the loop build once right after it starts watching.
func WithInitialBuild(enabled bool) Option {
	return func(c *Controller) {
		c.initialBuild = enabled
	}
}

// Controller is the development loop state machine.
type Controller struct {
	store    ConfigStore
	builder  Builder
	notifier Notifier
	logger   logging.Logger
	watchers WatchSet
	signals  Coalescer
	queue    *signalQueue

	observers    []func(from, to State)
	initialBuild bool

	mu    sync.RWMutex
	state State

	// owned by the loop goroutine
	roots    []watcher.WatchRoot
	settings build.Settings
}

// New creates a Controller in the Starting state.
func New(deps Deps, opts ...Option) *Controller {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}

	c := &Controller{
		store:    deps.Store,
		builder:  deps.Builder,
		notifier: deps.Notifier,
		logger:   deps.Logger.WithComponent("devloop"),
		watchers: deps.WatchSet,
		signals:  deps.Coalescer,
		queue:    newSignalQueue(),
		state:    Starting,
	}

	if c.signals == nil || c.watchers == nil {
		debouncer := watcher.NewDebouncer(watcher.DebouncerOptions{
			Tick:   deps.Tick,
			Quiet:  deps.Quiet,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		}, c.Enqueue)
		c.signals = debouncer
		c.watchers = watcher.NewManager(watcher.ManagerOptions{
			Sink:    debouncer,
			Filters: deps.Filters,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		})
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue queues a batch of coalesced signals for the loop. It never
// blocks.
func (c *Controller) Enqueue(batch []watcher.Signal) {
	c.queue.Push(batch)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Active returns the roots currently being watched.
func (c *Controller) Active() []watcher.WatchRoot {
	return c.watchers.Active()
}

func (c *Controller) setState(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()

	if from == to {
		return
	}
	for _, fn := range c.observers {
		fn(from, to)
	}
}

// Run starts watching and handles signals until ctx is cancelled. It only
// returns an error when the watchers cannot be created on start.
func (c *Controller) Run(ctx context.Context) error {
	c.setState(Starting)

	c.signals.Start(ctx)
	defer c.signals.Stop()
	defer c.watchers.CloseAll()

	c.logger.Info(ctx, "Starting development mode")

	c.loadConfig(ctx)
	c.roots = watchRoots(c.store.CurrentRoots())
	if _, err := c.watchers.CreateAll(c.roots); err != nil {
		c.setState(Stopped)
		return err
	}

	if c.initialBuild {
		c.rebuild(ctx, nil)
	}

	c.setState(Watching)
	c.logger.Info(ctx, "Watching for changes...")

	for {
		select {
		case <-ctx.Done():
			c.setState(Stopped)
			return nil
		case <-c.queue.Ready():
		}

		batch := c.queue.Take()
		if len(batch) == 0 {
			continue
		}

		if hasRoot(batch, watcher.ConfigFile) {
			if len(batch) > 1 {
				c.logger.Debug(ctx, "Restart supersedes pending rebuild", "roots", len(batch)-1)
			}
			c.restart(ctx)
		} else {
			c.rebuild(ctx, batch)
		}

		if ctx.Err() == nil {
			c.setState(Watching)
			c.logger.Info(ctx, "Watching for changes...")
		}
	}
}

// loadConfig reads the config file and derives the build settings. A config
// that cannot be read leaves the previous values in place.
func (c *Controller) loadConfig(ctx context.Context) {
	values, err := c.store.Reload()
	if err != nil {
		errors.Report(ctx, c.logger, err)
	}
	c.settings = build.NewSettings(c.store.ProjectDir(), values, true)
	if c.notifier != nil {
		c.notifier.SettingsChanged(c.settings)
	}
}

func (c *Controller) rebuild(ctx context.Context, batch []watcher.Signal) {
	c.setState(Rebuilding)

	for _, s := range batch {
		c.logger.Info(ctx, "Change detected", "root", s.Root.String(), "events", s.Count)
	}

	outcome := c.builder.Rebuild(ctx, c.settings)
	if outcome.Success {
		c.logger.Info(ctx, "Build succeeded", "duration", outcome.Duration.Round(time.Millisecond).String())
	} else {
		c.logger.Error(ctx, nil, "Build failed", "diagnostics", len(outcome.Diagnostics))
		for _, diagnostic := range outcome.Diagnostics {
			c.logger.Error(ctx, nil, diagnostic)
		}
	}

	if c.notifier != nil {
		c.notifier.BuildCompleted(outcome)
	}
}

// restart tears down every watcher, reloads the config and watches the
// roots it names. When the new roots cannot be watched the previous ones
// are restored.
func (c *Controller) restart(ctx context.Context) {
	c.setState(Restarting)
	c.logger.Info(ctx, "Config changed, restarting...")

	c.watchers.CloseAll()
	c.signals.Forget()
	c.queue.Clear()

	c.loadConfig(ctx)

	previous := c.roots
	next := watchRoots(c.store.CurrentRoots())
	if _, err := c.watchers.CreateAll(next); err != nil {
		c.logger.Error(ctx, err, "Cannot watch the configured roots, keeping the previous ones")
		if _, err := c.watchers.CreateAll(previous); err != nil {
			c.logger.Error(ctx, err, "Cannot restore the previous roots")
		}
		return
	}
	c.roots = next
}

func watchRoots(r config.Roots) []watcher.WatchRoot {
	return []watcher.WatchRoot{
		{ID: watcher.AssetsRoot, Path: r.Assets.Path, Required: r.Assets.Required},
		{ID: watcher.SourceRoot, Path: r.Source.Path, Required: r.Source.Required},
		{ID: watcher.ConfigFile, Path: r.ConfigFile.Path, Required: r.ConfigFile.Required},
	}
}

func hasRoot(batch []watcher.Signal, id watcher.RootID) bool {
	for _, s := range batch {
		if s.Root == id {
			return true
		}
	}
	return false
}
