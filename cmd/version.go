package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/magic-framework/magic/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for magic.

Examples:
  magic version                # Show version and commit
  magic version --short        # Show short version only
  magic version --detailed     # Show detailed build info
  magic version --format json  # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		return outputVersionJSON(out)
	case "text":
		switch {
		case versionShort:
			_, err := fmt.Fprintln(out, version.GetShortVersion())
			return err
		case versionDetailed:
			return outputVersionDetailed(out)
		default:
			return outputVersionDefault(out)
		}
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func outputVersionDefault(out io.Writer) error {
	info := version.GetBuildInfo()

	line := "magic " + info.Version
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		line += fmt.Sprintf(" (%s)", info.GitCommit[:7])
	}
	if info.Dirty {
		line += " (dirty)"
	}
	_, err := fmt.Fprintln(out, line)
	return err
}

func outputVersionDetailed(out io.Writer) error {
	buildType := "development"
	if version.IsRelease() {
		buildType = "release"
	}
	_, err := fmt.Fprintf(out, "%s\nBuild type: %s\n", version.GetDetailedVersion(), buildType)
	return err
}

func outputVersionJSON(out io.Writer) error {
	info := version.GetBuildInfo()

	jsonInfo := map[string]interface{}{
		"version":    info.Version,
		"git_commit": info.GitCommit,
		"go_version": info.GoVersion,
		"platform":   info.Platform,
		"is_release": version.IsRelease(),
		"is_dirty":   info.Dirty,
	}
	if !info.BuildTime.IsZero() {
		jsonInfo["build_time"] = info.BuildTime
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonInfo)
}
