// Package cmd provides the command-line interface of magic.
//
// The commands are built with cobra and cover the whole project lifecycle,
// from scaffolding to the watch-driven development loop.
//
// # Available Commands
//
//   - new: Create a new project directory with the default layout
//   - setup: Write a config file with the default options
//   - dev: Watch the project, rebuild on change and live reload the browser
//   - build: Bundle the project once for production
//   - version: Show version information
//   - help: Show the command list
//
// # Command Examples
//
//	// Create a project and start developing
//	magic new space-invaders
//	magic dev -C space-invaders
//
//	// Development loop without the reload server
//	magic dev --no-serve --initial-build
//
//	// Production build into a custom directory
//	magic build --dist public
//
// # Development Loop
//
// dev watches the assets and systems directories and the config file.
// Bursts of changes are coalesced until the project has been quiet for
// --quiet-window, then a single rebuild runs. A change to the config file
// reloads the configuration and moves the watchers to the new directories
// instead of rebuilding. A failed build is reported and the loop keeps
// watching.
//
// # Configuration Integration
//
// Configuration is resolved with the precedence (highest first):
//  1. --dist and other command-line flags
//  2. MAGIC_<KEY> environment variables (MAGIC_DIST, MAGIC_PORT, ...)
//  3. the project config file (magic.config, or --config / MAGIC_CONFIG_FILE)
//  4. built-in defaults
//
// # Error Handling
//
// Commands return structured errors from internal/errors. Execute prints
// them and main maps them to the process exit code. Interrupts (Ctrl+C)
// stop dev and build gracefully.
package cmd
