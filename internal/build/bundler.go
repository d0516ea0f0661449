// Package build implements the Rebuild Trigger: it generates the bundle root
// file of a magic project and hands it to a Bundler, reporting the result as
// an Outcome.
package build

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/magic-framework/magic/internal/errors"
)

// Target is the platform a bundle is built for.
type Target int

const (
	TargetBrowser Target = iota
	TargetNode
	TargetNeutral
)

// String returns the string representation of the Target
func (t Target) String() string {
	switch t {
	case TargetBrowser:
		return "browser"
	case TargetNode:
		return "node"
	case TargetNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// ParseTarget converts a target name to a Target.
func ParseTarget(name string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "browser", "":
		return TargetBrowser, nil
	case "node":
		return TargetNode, nil
	case "neutral":
		return TargetNeutral, nil
	default:
		return TargetBrowser, fmt.Errorf("unknown target %q", name)
	}
}

// Options are passed to every Bundler invocation.
type Options struct {
	Minify bool
	Target Target
}

// Outcome is the result of one Bundler invocation. It is produced once,
// after the invocation has finished.
type Outcome struct {
	Success     bool
	Diagnostics []string
	Duration    time.Duration
}

// Failure builds an unsuccessful Outcome.
func Failure(diagnostics ...string) Outcome {
	return Outcome{Success: false, Diagnostics: diagnostics}
}

// Err converts a failed outcome to a BuildFailure error; it returns nil for
// a successful one.
func (o Outcome) Err() error {
	if o.Success {
		return nil
	}
	return errors.NewBuildFailure(o.Diagnostics)
}

// Bundler bundles entryFile and everything it imports into outDir.
// Implementations keep no state between calls.
type Bundler interface {
	Invoke(ctx context.Context, entryFile, outDir string, opts Options) Outcome
}

// BundlerFunc adapts a function to Bundler.
type BundlerFunc func(ctx context.Context, entryFile, outDir string, opts Options) Outcome

// Invoke calls f.
func (f BundlerFunc) Invoke(ctx context.Context, entryFile, outDir string, opts Options) Outcome {
	return f(ctx, entryFile, outDir, opts)
}

// NewBundler returns the Bundler configured by name: "esbuild" bundles
// in-process, any other allowlisted name runs that command.
func NewBundler(name string) (Bundler, error) {
	switch name {
	case "esbuild", "":
		return EsbuildBundler{}, nil
	default:
		b := CommandBundler{Command: name}
		if err := b.validate(nil); err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeCommandNotAllowed,
				fmt.Sprintf("unsupported bundler %q", name), err)
		}
		return b, nil
	}
}
