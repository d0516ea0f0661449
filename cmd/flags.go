package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/magic-framework/magic/internal/logging"
)

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	wrapFlag(cmd.Flags().Lookup(flagName), validator)
}

// AddPersistentFlagValidation adds validation for a persistent flag
func AddPersistentFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	wrapFlag(cmd.PersistentFlags().Lookup(flagName), validator)
}

func wrapFlag(flag *pflag.Flag, validator func(string) error) {
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: flag.Value.Set,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateLogLevel checks a --log-level value.
func ValidateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}

// ValidateLogFormat checks a --log-format value.
func ValidateLogFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q, must be one of: text, json", format)
	}
}

// ValidatePositiveDuration checks that a duration flag is greater than zero.
func ValidatePositiveDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %s", value)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", value)
	}
	return nil
}
