package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/scaffolding"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create a config file with the default options",
	Long: `Write a config file with the default options into the project directory.
An existing config file is replaced.

Examples:
  magic setup
  magic setup -C games/pong`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	values := config.Defaults()
	if distOverride != "" {
		values[config.KeyDist] = distOverride
	}

	path := newStore(false).Path()
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	generator := scaffolding.NewProjectGenerator(filepath.Base(path), values)
	content, err := generator.Setup(filepath.Dir(path))
	if err != nil {
		return err
	}

	console.Success(fmt.Sprintf("Config file created at %s", path))
	console.Print("with default options:", color.New(color.FgHiWhite))
	console.Print(content, color.New(color.FgCyan))
	return nil
}
