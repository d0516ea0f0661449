// Package validation provides security validation functions for preventing
// command injection and cross-origin websocket connections.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateArgument validates a command line argument to prevent injection attacks
func ValidateArgument(arg string) error {
	dangerous := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\n", "\r", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidateCommand validates a command against an allowlist
func ValidateCommand(command string, allowedCommands map[string]bool) error {
	if command == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if !allowedCommands[command] {
		return fmt.Errorf("command '%s' is not allowed", command)
	}

	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}

	return nil
}

// ValidateOrigin validates WebSocket origin for CSRF protection
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// SanitizeInput removes or escapes potentially dangerous characters from user input
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' {
			sanitized.WriteRune(r)
		}
	}

	return strings.TrimSpace(sanitized.String())
}
