package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/logging"
	"github.com/magic-framework/magic/internal/scaffolding"
	"github.com/magic-framework/magic/internal/ui"
)

// ConfigFileEnv names the environment variable selecting the config file.
const ConfigFileEnv = "MAGIC_CONFIG_FILE"

var (
	projectDir   string
	cfgFile      string
	logLevel     string
	logFormat    string
	distOverride string

	console   = ui.NewConsole()
	startTime time.Time
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "magic",
	Short: "Build tool and development loop for Magic Framework projects",
	Long: `magic scaffolds, builds and develops Magic Framework projects.

Quick Start:
  magic new my-game     Create a new project
  magic dev             Watch the project, rebuild on change and live reload
  magic build           Production build`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		startTime = time.Now()
		if showsBanner(cmd) {
			console.Banner()
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if showsBanner(cmd) {
			console.Runtime(time.Since(startTime))
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		console.Help(commandList(cmd.Root()))
	},
}

var helpCmd = &cobra.Command{
	Use:   "help [command]",
	Short: "Show this help message",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			target, _, err := cmd.Root().Find(args)
			if err != nil {
				return err
			}
			return target.Help()
		}
		console.Help(commandList(cmd.Root()))
		return nil
	},
}

// Execute runs the command line and reports a failure to the user.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		console.Error(err.Error())
		if strings.HasPrefix(err.Error(), "unknown command") {
			console.Help(commandList(rootCmd))
		}
	}
	return err
}

func init() {
	rootCmd.SetHelpCommand(helpCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectDir, "project", "C", ".", "project directory")
	flags.StringVar(&cfgFile, "config", "", "config file name (default is magic.config, can also use "+ConfigFileEnv+" env var)")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	flags.StringVar(&distOverride, "dist", "", "the directory to output the build files to")

	AddPersistentFlagValidation(rootCmd, "log-level", ValidateLogLevel)
	AddPersistentFlagValidation(rootCmd, "log-format", ValidateLogFormat)
}

func showsBanner(cmd *cobra.Command) bool {
	return cmd.Name() != versionCmd.Name()
}

// commandList is the colored command table printed by help.
func commandList(root *cobra.Command) []ui.Command {
	list := []ui.Command{{Name: "--dist", Description: "The directory to output the build files to"}}
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "completion" {
			continue
		}
		list = append(list, ui.Command{Name: c.Name(), Description: c.Short})
	}
	return list
}

// configFileName picks the config file: --config, then MAGIC_CONFIG_FILE,
// then magic.config.
func configFileName() string {
	if cfgFile != "" {
		return cfgFile
	}
	if env := os.Getenv(ConfigFileEnv); env != "" {
		return env
	}
	return config.DefaultFileName
}

func overrides() map[string]string {
	return map[string]string{config.KeyDist: distOverride}
}

func newStore(strict bool) *config.Store {
	return config.NewStore(config.Options{
		ProjectDir: projectDir,
		FileName:   configFileName(),
		Overrides:  overrides(),
		Strict:     strict,
	})
}

func newLogger() (*logging.MagicLogger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: logFormat,
		Output: console.Out,
	}), nil
}

// ensureProject offers to create a project when the config file is missing.
// Declining keeps the defaults.
func ensureProject(store *config.Store) error {
	if store.Exists() {
		return nil
	}

	dir, err := filepath.Abs(store.ProjectDir())
	if err != nil {
		dir = store.ProjectDir()
	}

	create, err := console.ConfirmCreateProject(dir)
	if err != nil || !create {
		return err
	}

	values := config.Defaults()
	if distOverride != "" {
		values[config.KeyDist] = distOverride
	}
	created, err := scaffolding.NewProjectGenerator(filepath.Base(configFileName()), values).Complete(dir)
	if err != nil {
		return err
	}
	console.Success(fmt.Sprintf("Project created at %s (%d new entries)", dir, len(created)))
	return nil
}

// reportWarnings prints the validation warnings of the loaded config.
func reportWarnings(store *config.Store) {
	for _, w := range store.Warnings() {
		console.Warn(fmt.Sprintf("%s: %s", w.Field, w.Message))
	}
}
