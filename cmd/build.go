package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/magic-framework/magic/internal/build"
	"github.com/magic-framework/magic/internal/config"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the project for production",
	Long: `Bundle the project once into the dist directory.

Production builds are minified when the config enables minify and never
include the live reload hook.

Examples:
  magic build               # Build into the configured dist directory
  magic build --dist out    # Build into ./out`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger()
	if err != nil {
		return err
	}

	store := newStore(false)
	if err := ensureProject(store); err != nil {
		return err
	}
	values := store.Load()
	reportWarnings(store)

	bundler, err := build.NewBundler(values.Get(config.KeyBundler))
	if err != nil {
		return err
	}

	settings := build.NewSettings(store.ProjectDir(), values, false)
	outcome := build.NewTrigger(bundler, logger).Rebuild(ctx, settings)
	if !outcome.Success {
		// A single diagnostic is already part of the returned error.
		if len(outcome.Diagnostics) > 1 {
			for _, d := range outcome.Diagnostics {
				console.Error(d)
			}
		}
		return outcome.Err()
	}

	console.Success(fmt.Sprintf("Built %s in %s", settings.DistDir, outcome.Duration.Round(time.Millisecond)))
	return nil
}
