package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/magic-framework/magic/internal/config"
	"github.com/magic-framework/magic/internal/logging"
)

const (
	// MagicDir holds generated files inside a project.
	MagicDir = ".magic"
	// BundleRoot is the generated entry point handed to the bundler.
	BundleRoot = "bundle.js"

	rootHeader = "// AUTO GENERATED BY MAGIC -- DO NOT EDIT\n"
)

var frameworkCandidates = []string{
	filepath.Join("node_modules", "magic-framework", "index.ts"),
	filepath.Join("node_modules", "magic-framework", "index.js"),
}

// Settings describe one rebuild of a project.
type Settings struct {
	ProjectDir string
	SrcDir     string
	Entry      string
	DistDir    string
	Dev        bool
	// ReloadPort is exposed to the bundle as window.magic_port when set.
	ReloadPort int
	Minify     bool
	Target     Target
	// Bundler names the bundler, see NewBundler.
	Bundler string
	// Timeout bounds the bundler call; zero means no limit.
	Timeout time.Duration
}

// NewSettings derives Settings from configuration values. Development
// builds are never minified.
func NewSettings(projectDir string, values config.Values, dev bool) Settings {
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(projectDir, p)
	}

	target, err := ParseTarget(values.Get(config.KeyTarget))
	if err != nil {
		target = TargetBrowser
	}

	s := Settings{
		ProjectDir: projectDir,
		SrcDir:     resolve(values.Get(config.KeySrc)),
		Entry:      values.Get(config.KeyEntry),
		DistDir:    resolve(values.Get(config.KeyDist)),
		Dev:        dev,
		Minify:     values.Bool(config.KeyMinify) && !dev,
		Target:     target,
		Bundler:    values.Get(config.KeyBundler),
		Timeout:    values.Duration(config.KeyBuildTimeout),
	}
	if dev {
		s.ReloadPort = values.Int(config.KeyPort)
	}
	return s
}

// RootFile is the path of the generated bundle root.
func (s Settings) RootFile() string {
	return filepath.Join(s.ProjectDir, MagicDir, BundleRoot)
}

// EntryFile is the path of the project's own entry module.
func (s Settings) EntryFile() string {
	return filepath.Join(s.SrcDir, s.Entry)
}

// RootContent renders the bundle root for s. It returns the content, any
// warnings, and an error when the project entry file is missing.
func RootContent(s Settings) (string, []string, error) {
	var buf bytes.Buffer
	var warnings []string

	buf.WriteString(rootHeader)
	buf.WriteString("\n")

	if s.Dev {
		buf.WriteString("// Development mode\nwindow.magic_dev = true;\n")
		if s.ReloadPort > 0 {
			fmt.Fprintf(&buf, "window.magic_port = %d;\n", s.ReloadPort)
		}
	}

	framework := ""
	for _, candidate := range frameworkCandidates {
		path := filepath.Join(s.ProjectDir, candidate)
		if _, err := os.Stat(path); err == nil {
			framework = path
			break
		}
	}
	if framework != "" {
		fmt.Fprintf(&buf, "import %s;\n", jsString(framework))
	} else {
		warnings = append(warnings, "No magic-framework module found! Did you install the project dependencies?")
	}

	entry := s.EntryFile()
	if info, err := os.Stat(entry); err != nil || info.IsDir() {
		return "", warnings, fmt.Errorf("no entry file found: %s", entry)
	}
	fmt.Fprintf(&buf, "\n// Consumer lib\nimport %s;\n", jsString(entry))

	return buf.String(), warnings, nil
}

// WriteRoot generates the bundle root file and returns its path. The file
// is only rewritten when its content changes.
func WriteRoot(s Settings) (string, []string, error) {
	content, warnings, err := RootContent(s)
	if err != nil {
		return "", warnings, err
	}

	path := s.RootFile()
	if existing, err := os.ReadFile(path); err == nil && string(existing) == content {
		return path, warnings, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", warnings, fmt.Errorf("create %s: %w", MagicDir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", warnings, fmt.Errorf("write bundle root: %w", err)
	}
	return path, warnings, nil
}

func jsString(path string) string {
	return strconv.Quote(filepath.ToSlash(path))
}

// Trigger runs rebuilds one at a time.
type Trigger struct {
	mu      sync.Mutex
	bundler Bundler
	logger  logging.Logger
	metrics *BuildMetrics
}

// NewTrigger creates a Trigger invoking bundler. A nil bundler makes every
// rebuild use the one named by its Settings.
func NewTrigger(bundler Bundler, logger logging.Logger) *Trigger {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Trigger{
		bundler: bundler,
		logger:  logger.WithComponent("build"),
		metrics: NewBuildMetrics(),
	}
}

// Metrics returns the trigger's build metrics.
func (t *Trigger) Metrics() *BuildMetrics {
	return t.metrics
}

// Rebuild regenerates the bundle root and invokes the bundler. Calls are
// serialized: a second caller waits for the running rebuild to finish.
func (t *Trigger) Rebuild(ctx context.Context, s Settings) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	outcome := t.rebuild(ctx, s)
	outcome.Duration = time.Since(start)
	t.metrics.RecordBuild(outcome)

	return outcome
}

func (t *Trigger) rebuild(ctx context.Context, s Settings) Outcome {
	rootFile, warnings, err := WriteRoot(s)
	for _, w := range warnings {
		t.logger.Warn(ctx, nil, w)
	}
	if err != nil {
		return Failure(err.Error())
	}
	t.logger.Debug(ctx, "Generated bundle root", "path", rootFile)

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	bundler := t.bundler
	if bundler == nil {
		if bundler, err = NewBundler(s.Bundler); err != nil {
			return Failure(err.Error())
		}
	}

	return bundler.Invoke(ctx, rootFile, s.DistDir, Options{Minify: s.Minify, Target: s.Target})
}
