// Package errors defines the error taxonomy of the development loop and the
// parser that turns bundler output into diagnostics.
//
// Only KindFatalStartup crosses the loop boundary and terminates the process.
// Every other kind is handled where it occurs: logged, and the loop carries on.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error by how the development loop reacts to it.
type Kind string

const (
	KindFatalStartup Kind = "fatal_startup"
	KindSoftSkip     Kind = "soft_skip"
	KindBuildFailure Kind = "build_failure"
	KindConfigReload Kind = "config_reload"
	KindValidation   Kind = "validation"
	KindConfig       Kind = "config"
	KindIO           Kind = "io"
)

// Common error codes.
const (
	ErrCodeRequiredRootMissing = "ERR_REQUIRED_ROOT_MISSING"
	ErrCodeWatcherCreate       = "ERR_WATCHER_CREATE"
	ErrCodeRootSkipped         = "ERR_ROOT_SKIPPED"
	ErrCodeBuildFailed         = "ERR_BUILD_FAILED"
	ErrCodeConfigUnreadable    = "ERR_CONFIG_UNREADABLE"
	ErrCodeConfigInvalid       = "ERR_CONFIG_INVALID"
	ErrCodeDirectoryExists     = "ERR_DIRECTORY_EXISTS"
	ErrCodeDirectoryNotEmpty   = "ERR_DIRECTORY_NOT_EMPTY"
	ErrCodeNoPath              = "ERR_NO_PATH"
	ErrCodeCommandNotAllowed   = "ERR_COMMAND_NOT_ALLOWED"
	ErrCodeInvalidPath         = "ERR_INVALID_PATH"
	ErrCodeServerListen        = "ERR_SERVER_LISTEN"
)

// MagicError is a structured error carrying its kind, a stable code and the
// path it concerns.
type MagicError struct {
	Kind    Kind
	Code    string
	Message string
	Path    string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *MagicError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Path != "" {
		parts = append(parts, e.Path+":")
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")
	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *MagicError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a MagicError with the same kind and code.
func (e *MagicError) Is(target error) bool {
	var t *MagicError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// WithContext adds a key/value pair to the error.
func (e *MagicError) WithContext(key string, value interface{}) *MagicError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithPath sets the path the error concerns.
func (e *MagicError) WithPath(path string) *MagicError {
	e.Path = path
	return e
}

// Sentinels for the scaffolder. Compare with errors.Is.
var (
	ErrDirectoryExists   = &MagicError{Kind: KindValidation, Code: ErrCodeDirectoryExists, Message: "the directory already exists"}
	ErrDirectoryNotEmpty = &MagicError{Kind: KindValidation, Code: ErrCodeDirectoryNotEmpty, Message: "the directory is not empty"}
)

// NewFatalStartupError creates an error that aborts the development loop.
func NewFatalStartupError(code, message string, cause error) *MagicError {
	return &MagicError{
		Kind:    KindFatalStartup,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewSoftSkipWarning records that an optional watch root was left out.
func NewSoftSkipWarning(path, message string, cause error) *MagicError {
	return &MagicError{
		Kind:    KindSoftSkip,
		Code:    ErrCodeRootSkipped,
		Message: message,
		Path:    path,
		Cause:   cause,
	}
}

// NewBuildFailure wraps the diagnostics of a failed bundler run.
func NewBuildFailure(diagnostics []string) *MagicError {
	msg := "build failed"
	if len(diagnostics) == 1 {
		msg = "build failed: " + diagnostics[0]
	} else if len(diagnostics) > 1 {
		msg = fmt.Sprintf("build failed with %d diagnostics", len(diagnostics))
	}
	return &MagicError{
		Kind:    KindBuildFailure,
		Code:    ErrCodeBuildFailed,
		Message: msg,
	}
}

// NewConfigReloadDegradation signals that a config reload fell back to the
// previously loaded values.
func NewConfigReloadDegradation(path string, cause error) *MagicError {
	return &MagicError{
		Kind:    KindConfigReload,
		Code:    ErrCodeConfigUnreadable,
		Message: "config could not be reloaded, keeping previous values",
		Path:    path,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *MagicError {
	return &MagicError{Kind: KindValidation, Code: code, Message: message}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *MagicError {
	return &MagicError{Kind: KindConfig, Code: code, Message: message, Cause: cause}
}

// NewIOError creates an I/O error.
func NewIOError(path, message string, cause error) *MagicError {
	return &MagicError{Kind: KindIO, Message: message, Path: path, Cause: cause}
}

// KindOf returns the kind of the first MagicError in err's chain, or "".
func KindOf(err error) Kind {
	var me *MagicError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// IsFatal reports whether err must terminate the process.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatalStartup
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Logger is the subset of the logging interface the reporter needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// Report logs err at the level its kind calls for. Fatal errors are logged
// at error level; everything the loop recovers from is a warning.
func Report(ctx context.Context, logger Logger, err error) {
	if err == nil || logger == nil {
		return
	}

	var me *MagicError
	if !errors.As(err, &me) {
		logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch me.Kind {
	case KindFatalStartup:
		logger.Error(ctx, me.Cause, me.Message, "code", me.Code, "path", me.Path)
	case KindSoftSkip:
		logger.Warn(ctx, me.Cause, me.Message, "path", me.Path)
	case KindConfigReload:
		logger.Warn(ctx, me.Cause, me.Message, "path", me.Path)
	case KindBuildFailure:
		logger.Warn(ctx, nil, me.Message, "code", me.Code)
	default:
		logger.Error(ctx, me.Cause, me.Message, "kind", me.Kind, "code", me.Code, "path", me.Path)
	}
}
