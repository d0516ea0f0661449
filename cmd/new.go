package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/scaffolding"
)

var newCmd = &cobra.Command{
	Use:   "new <path>",
	Short: "Create a new project",
	Long: `Create a new Magic Framework project at path.

The directory must not exist yet. It receives a config file with the default
options, the dist, assets, systems and src directories and a starter page.

Examples:
  magic new space-invaders
  magic new games/pong --dist public`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNew,
}

func init() {
	rootCmd.AddCommand(newCmd)
}

func runNew(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		console.Print("CLI: No path provided! usage: magic new <path>", color.New(color.FgYellow))
		return nil
	}

	path := args[0]
	console.Print(fmt.Sprintf("Creating a new project at %s", path), color.New(color.FgHiWhite))

	values := config.Defaults()
	if distOverride != "" {
		values[config.KeyDist] = distOverride
	}

	created, err := scaffolding.NewProjectGenerator(filepath.Base(configFileName()), values).Create(path)
	if err != nil {
		return err
	}

	console.Success(fmt.Sprintf("Project created, %d files and directories written", len(created)))
	console.Print(fmt.Sprintf("Next: cd %s && magic dev", path), color.New(color.FgCyan))
	return nil
}
