// Package config provides the magic Config Store: a flat, string-keyed
// configuration read from the project's config file and layered with Viper.
//
// Values are resolved with the precedence explicit overrides (command-line
// flags) > MAGIC_* environment variables > config file > defaults. The file is
// either the "key value" line format of magic.config or, for .yml/.yaml file
// names, a flat YAML mapping.
//
// Loading fails soft: a missing file keeps the previously loaded values (the
// defaults on first load) and an unreadable or invalid file keeps them too,
// reporting a ConfigReloadDegradation to the caller.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/magic-framework/magic/internal/errors"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
const EnvPrefix = "MAGIC"

// Root is one watched location derived from the configuration.
type Root struct {
	Path     string
	Required bool
}

// Roots are the locations the development loop watches.
type Roots struct {
	Assets     Root
	Source     Root
	ConfigFile Root
}

// Options configure a Store.
type Options struct {
	// ProjectDir is the directory relative paths are resolved against.
	ProjectDir string
	// FileName is the config file name, DefaultFileName when empty. An
	// absolute name is used as is.
	FileName string
	// Overrides take precedence over every other source.
	Overrides map[string]string
	// Strict makes the assets and source roots required.
	Strict bool
}

// Store loads, holds and persists the project configuration.
type Store struct {
	mu        sync.RWMutex
	opts      Options
	values    Values
	fileSeen  bool
	lastIssue *ValidationResult
}

// NewStore creates a store holding the defaults (with overrides applied).
// Call Load or Reload to read the config file.
func NewStore(opts Options) *Store {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}

	s := &Store{opts: opts}
	s.values, _ = s.resolve(nil)
	return s
}

// Path returns the config file path.
func (s *Store) Path() string {
	if filepath.IsAbs(s.opts.FileName) {
		return s.opts.FileName
	}
	return filepath.Join(s.opts.ProjectDir, s.opts.FileName)
}

// ProjectDir returns the directory relative paths are resolved against.
func (s *Store) ProjectDir() string {
	return s.opts.ProjectDir
}

// Exists reports whether the config file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.Path())
	return err == nil && !info.IsDir()
}

// Load reads the config file and returns the current values. It never
// fails; see Reload for the degradation that may have occurred.
func (s *Store) Load() Values {
	values, _ := s.Reload()
	return values
}

// Reload reads the config file and returns the resulting values. When the
// file cannot be used the previous values are kept and returned together
// with a ConfigReloadDegradation error. A missing file is only reported if a
// file had been loaded before.
func (s *Store) Reload() (Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fileValues, err := s.readFile()
	switch {
	case err == nil:
	case os.IsNotExist(err):
		if s.fileSeen {
			return s.values.Clone(), errors.NewConfigReloadDegradation(s.Path(), err)
		}
		return s.values.Clone(), nil
	default:
		return s.values.Clone(), errors.NewConfigReloadDegradation(s.Path(), err)
	}

	resolved, result := s.resolve(fileValues)
	s.lastIssue = result
	if result.HasErrors() {
		cause := errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration", result)
		return s.values.Clone(), errors.NewConfigReloadDegradation(s.Path(), cause)
	}

	s.values = resolved
	s.fileSeen = true
	return s.values.Clone(), nil
}

// Values returns a copy of the current values.
func (s *Store) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Clone()
}

// Warnings returns the validation warnings of the last successful read.
func (s *Store) Warnings() []ValidationError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastIssue == nil {
		return nil
	}
	return append([]ValidationError(nil), s.lastIssue.Warnings...)
}

// CurrentRoots derives the watched roots from the current values. The
// source root is the systems directory.
func (s *Store) CurrentRoots() Roots {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Roots{
		Assets:     Root{Path: s.resolvePath(s.values[KeyAssets]), Required: s.opts.Strict},
		Source:     Root{Path: s.resolvePath(s.values[KeySystems]), Required: s.opts.Strict},
		ConfigFile: Root{Path: s.Path()},
	}
}

// ResolvePath joins a configured path with the project directory unless it
// is already absolute.
func (s *Store) ResolvePath(path string) string {
	return s.resolvePath(path)
}

func (s *Store) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.opts.ProjectDir, path)
}

// Save validates values and writes them to the config file.
func (s *Store) Save(values Values) error {
	if result := Validate(values); result.HasErrors() {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "refusing to save invalid configuration", result)
	}
	return WriteFile(s.Path(), values)
}

func (s *Store) readFile() (Values, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, err
	}

	if isYAML(s.Path()) {
		return parseYAML(data)
	}
	return ParseLines(string(data)), nil
}

// resolve layers defaults, file values, MAGIC_* environment variables and
// overrides, and validates the result.
func (s *Store) resolve(fileValues Values) (Values, *ValidationResult) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	keys := Defaults()
	for key, value := range keys {
		v.SetDefault(key, value)
	}

	if len(fileValues) > 0 {
		layer := make(map[string]interface{}, len(fileValues))
		for key, value := range fileValues {
			layer[key] = value
			keys[key] = value
		}
		// MergeConfigMap only fails on malformed maps, which a Values cannot be.
		_ = v.MergeConfigMap(layer)
	}

	for key, value := range s.opts.Overrides {
		if value == "" {
			continue
		}
		v.Set(key, value)
		keys[key] = value
	}

	resolved := make(Values, len(keys))
	for key := range keys {
		resolved[key] = v.GetString(key)
	}

	return resolved, Validate(resolved)
}

// WriteFile writes values to path, as YAML for .yml/.yaml names and in the
// line format otherwise.
func WriteFile(path string, values Values) error {
	var data []byte
	if isYAML(path) {
		out, err := dumpYAML(values)
		if err != nil {
			return errors.NewIOError(path, "encode config", err)
		}
		data = out
	} else {
		data = []byte(Dump(values))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError(path, "write config", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}
