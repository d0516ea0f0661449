package build

import (
	"context"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/magic-framework/magic/internal/errors"
)

// EsbuildBundler bundles in-process with esbuild. Cancelling the context
// cancels the running build.
type EsbuildBundler struct{}

// Invoke implements Bundler.
func (EsbuildBundler) Invoke(ctx context.Context, entryFile, outDir string, opts Options) Outcome {
	if err := ctx.Err(); err != nil {
		return Failure(fmt.Sprintf("build cancelled: %v", err))
	}

	bctx, ctxErr := api.Context(api.BuildOptions{
		EntryPoints:       []string{entryFile},
		Outdir:            outDir,
		Bundle:            true,
		Write:             true,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		Platform:          platformOf(opts.Target),
		LogLevel:          api.LogLevelSilent,
	})
	if ctxErr != nil {
		return Failure(messageStrings(ctxErr.Errors)...)
	}
	defer bctx.Dispose()

	done := make(chan api.BuildResult, 1)
	go func() {
		done <- bctx.Rebuild()
	}()

	var result api.BuildResult
	select {
	case result = <-done:
	case <-ctx.Done():
		bctx.Cancel()
		<-done
		return Failure(fmt.Sprintf("build cancelled: %v", ctx.Err()))
	}

	if len(result.Errors) > 0 {
		return Failure(messageStrings(result.Errors)...)
	}
	return Outcome{Success: true, Diagnostics: messageStrings(result.Warnings)}
}

func platformOf(t Target) api.Platform {
	switch t {
	case TargetNode:
		return api.PlatformNode
	case TargetNeutral:
		return api.PlatformNeutral
	default:
		return api.PlatformBrowser
	}
}

func messageStrings(messages []api.Message) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		d := errors.Diagnostic{Message: m.Text}
		if m.Location != nil {
			d.File = m.Location.File
			d.Line = m.Location.Line
			d.Column = m.Location.Column + 1
		}
		out = append(out, d.String())
	}
	return out
}
