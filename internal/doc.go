// Package internal contains the implementation packages of the magic CLI.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - build: Bundle root generation, bundler invocation and build metrics
//   - clock: Time source shared by the watchers, with a manual fake for tests
//   - config: Config file parsing, environment overrides and validation
//   - devloop: The development loop state machine driving rebuilds and restarts
//   - errors: Error kinds, exit codes and bundler diagnostic parsing
//   - logging: Structured logging on top of log/slog
//   - reload: Static file server and websocket live reload
//   - scaffolding: Project templates for new and setup
//   - ui: Console output and prompts
//   - validation: Input sanitization and command allowlisting
//   - version: Build and version information
//   - watcher: File system watch roots, filters and the change debouncer
//
// # Inter-Package Communication
//
// watcher delivers coalesced change signals to devloop, which asks config
// for the current roots, build for a rebuild and reload to notify browsers.
// Packages depend on small interfaces rather than each other's concrete
// types so that each can be tested with fakes.
package internal
