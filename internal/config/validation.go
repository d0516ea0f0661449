package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       string
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Error joins the validation errors so a result can travel as an error cause.
func (vr *ValidationResult) Error() string {
	msgs := make([]string, 0, len(vr.Errors))
	for _, err := range vr.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(msgs, "; ")
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field, value, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field, value, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

var pathKeys = []string{KeyDist, KeySrc, KeyAssets, KeySystems, KeyEntry}

// Targets accepted by the target key.
var Targets = []string{"browser", "node", "neutral"}

// Validate checks every known key of v. Unknown keys only produce warnings.
func Validate(v Values) *ValidationResult {
	result := &ValidationResult{}

	for _, key := range pathKeys {
		value, ok := v[key]
		if !ok {
			continue
		}
		if err := validatePath(value); err != nil {
			result.addError(key, value, err.Error(), "Use a path relative to the project directory")
			continue
		}
		if !filepath.IsAbs(value) && strings.HasPrefix(filepath.Clean(value), "..") {
			result.addWarning(key, value, "path points outside the project directory")
		}
	}

	if value, ok := v[KeyPort]; ok {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || port < 1 || port > 65535 {
			result.addError(KeyPort, value, "port must be a number between 1 and 65535", "Try the default port 3000")
		}
	}

	if value, ok := v[KeyHost]; ok {
		if err := validateHostname(value); err != nil {
			result.addError(KeyHost, value, err.Error(), "Use localhost or an IP address")
		}
	}

	if value, ok := v[KeyMinify]; ok {
		if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
			result.addError(KeyMinify, value, "minify must be true or false")
		}
	}

	if value, ok := v[KeyTarget]; ok && !contains(Targets, value) {
		result.addError(KeyTarget, value, "unknown target", "Valid targets: "+strings.Join(Targets, ", "))
	}

	if value, ok := v[KeyBundler]; ok {
		if err := validateBuildCommand(value); err != nil {
			result.addError(KeyBundler, value, err.Error(), "Use esbuild or bun")
		}
	}

	if value, ok := v[KeyBuildTimeout]; ok {
		d, err := parseDuration(value)
		if err != nil || d < 0 {
			result.addError(KeyBuildTimeout, value, "build_timeout must be a duration such as 30s, or 0 to disable")
		}
	}

	defaults := Defaults()
	for _, key := range v.Keys() {
		if _, known := defaults[key]; !known {
			result.addWarning(key, v[key], "unknown configuration key")
		}
	}

	return result
}

func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty path")
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("path contains control characters")
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func validateBuildCommand(command string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(command, char) {
			return fmt.Errorf("contains potentially dangerous character: %s", char)
		}
	}

	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
