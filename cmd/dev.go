package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/magic-framework/magic/internal/build"
	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/devloop"
	"github.com/magic-framework/magic/internal/reload"
	"github.com/magic-framework/magic/internal/watcher"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start development mode",
	Long: `Watch the project and rebuild it on every change.

Changes in the assets and systems directories trigger a rebuild; editing the
config file restarts the watchers with the new configuration. Unless
--no-serve is given, the dist directory is served on host:port and open
pages reload after every build.

Examples:
  magic dev                        # Watch, rebuild and serve
  magic dev --no-serve             # Watch and rebuild only
  magic dev --strict               # Fail when assets or systems is missing
  magic dev --quiet-window 500ms   # Wait longer before rebuilding`,
	Args: cobra.NoArgs,
	RunE: runDev,
}

var (
	devNoServe      bool
	devStrict       bool
	devInitialBuild bool
	devQuietWindow  time.Duration
	devTick         time.Duration
)

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().BoolVar(&devNoServe, "no-serve", false, "don't serve the project or live reload")
	devCmd.Flags().BoolVar(&devStrict, "strict", false, "require the assets and systems directories")
	devCmd.Flags().BoolVar(&devInitialBuild, "initial-build", false, "build once before watching")
	devCmd.Flags().DurationVar(&devQuietWindow, "quiet-window", watcher.QuietWindow, "idle time after the last change before rebuilding")
	devCmd.Flags().DurationVar(&devTick, "tick", watcher.TickInterval, "how often pending changes are checked")

	AddFlagValidation(devCmd, "quiet-window", ValidatePositiveDuration)
	AddFlagValidation(devCmd, "tick", ValidatePositiveDuration)
}

func runDev(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}

	store := newStore(devStrict)
	if err := ensureProject(store); err != nil {
		return err
	}
	values := store.Load()
	reportWarnings(store)

	if _, err := build.NewBundler(values.Get(config.KeyBundler)); err != nil {
		return err
	}

	// The bundler is picked per rebuild so a config edit can switch it.
	trigger := build.NewTrigger(nil, logger)
	deps := devloop.Deps{
		Store:   store,
		Builder: trigger,
		Logger:  logger,
		Tick:    devTick,
		Quiet:   devQuietWindow,
	}

	var server *reload.Server
	if !devNoServe {
		server = reload.New(reload.Options{
			Host:    values.Get(config.KeyHost),
			Port:    values.Int(config.KeyPort),
			DistDir: store.ResolvePath(values.Get(config.KeyDist)),
			Logger:  logger,
			Metrics: trigger.Metrics(),
		})
		deps.Notifier = server
	}

	console.Print("🔄   Starting development mode 🔥✨", color.New(color.FgHiWhite))
	controller := devloop.New(deps, devloop.WithInitialBuild(devInitialBuild))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	if server != nil {
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	err = g.Wait()
	if summary := trigger.Metrics().Snapshot(); summary.Builds > 0 {
		console.Print(fmt.Sprintf("📦   %d builds, %d failed, average %s",
			summary.Builds, summary.Failures, summary.AverageDuration.Round(time.Millisecond)), color.New(color.FgHiWhite))
	}
	return err
}
