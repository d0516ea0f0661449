package build

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/magic-framework/magic/internal/errors"
	"github.com/magic-framework/magic/internal/validation"
)

// allowedCommands are the external bundlers magic knows how to drive.
var allowedCommands = map[string]bool{
	"bun":     true,
	"esbuild": true,
}

// CommandBundler runs an external bundler binary, one process per
// invocation.
type CommandBundler struct {
	Command string
	// Dir is the working directory of the process; the caller's when empty.
	Dir string
}

// Invoke implements Bundler.
func (b CommandBundler) Invoke(ctx context.Context, entryFile, outDir string, opts Options) Outcome {
	args := b.args(entryFile, outDir, opts)
	if err := b.validate(args); err != nil {
		return Failure(fmt.Sprintf("command validation failed: %v", err))
	}

	cmd := exec.CommandContext(ctx, b.Command, args...)
	cmd.Dir = b.Dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return Failure(fmt.Sprintf("%s build timed out: %v", b.Command, ctx.Err()))
		}

		diagnostics := errors.DiagnosticStrings(errors.ParseBundlerOutput(string(output)))
		if len(diagnostics) == 0 {
			diagnostics = outputLines(output)
		}
		if len(diagnostics) == 0 {
			diagnostics = []string{fmt.Sprintf("%s build failed: %v", b.Command, err)}
		}
		return Failure(diagnostics...)
	}

	return Outcome{Success: true}
}

func (b CommandBundler) args(entryFile, outDir string, opts Options) []string {
	switch b.Command {
	case "esbuild":
		args := []string{entryFile, "--bundle", "--outdir=" + outDir, "--platform=" + opts.Target.String()}
		if opts.Minify {
			args = append(args, "--minify")
		}
		return args
	default:
		args := []string{"build", entryFile, "--outdir", outDir}
		if opts.Minify {
			args = append(args, "--minify")
		}
		target := opts.Target.String()
		if opts.Target == TargetNeutral {
			// bun has no neutral target; its closest is bun itself.
			target = "bun"
		}
		return append(args, "--target", target)
	}
}

func (b CommandBundler) validate(args []string) error {
	if err := validation.ValidateCommand(b.Command, allowedCommands); err != nil {
		return err
	}
	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}

func outputLines(output []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
