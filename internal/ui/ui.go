// Package ui prints the colored console output of the magic CLI.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/magic-framework/magic/internal/validation"
)

var (
	successColor = color.New(color.FgHiGreen)
	warningColor = color.New(color.FgHiYellow)
	errorColor   = color.New(color.FgHiRed)
	bannerColor  = color.New(color.FgHiMagenta, color.Bold)
	promptColor  = color.New(color.FgHiCyan)
	pathColor    = color.New(color.FgHiMagenta)

	// helpColors cycle over the command list.
	helpColors = []*color.Color{
		color.New(color.FgHiRed),
		color.New(color.FgHiGreen),
		color.New(color.FgHiYellow),
		color.New(color.FgHiBlue),
		color.New(color.FgHiMagenta),
		color.New(color.FgHiCyan),
	}
)

// WIPWarning is printed under the banner of every command.
const WIPWarning = "Magic is in a early work in progress state, expect bugs & todos!"

// Console writes user facing output and reads answers to prompts.
type Console struct {
	Out io.Writer
	In  io.Reader
	// Interactive reports whether prompts may block on In.
	Interactive bool
}

// NewConsole returns a console on the process stdio. Prompts are only
// shown when stdin is a terminal.
func NewConsole() *Console {
	return &Console{
		Out:         color.Output,
		In:          os.Stdin,
		Interactive: IsTerminal(os.Stdin),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Print writes msg in clr.
func (c *Console) Print(msg string, clr *color.Color) {
	if clr == nil {
		fmt.Fprintln(c.Out, msg)
		return
	}
	_, _ = clr.Fprintln(c.Out, msg)
}

// Success prints a success message with a checkmark.
func (c *Console) Success(msg string) {
	_, _ = successColor.Fprintf(c.Out, "✅   %s\n", msg)
}

// Warn prints a warning message.
func (c *Console) Warn(msg string) {
	_, _ = warningColor.Fprintf(c.Out, "⚠️    %s\n", msg)
}

// Error prints an error message.
func (c *Console) Error(msg string) {
	_, _ = errorColor.Fprint(c.Out, "🛑   Error: ")
	fmt.Fprintln(c.Out, msg)
}

// Banner prints the framework banner followed by the work in progress
// warning.
func (c *Console) Banner() {
	fmt.Fprintln(c.Out)
	c.Print("✨   Magic Framework", bannerColor)
	c.Warn(WIPWarning)
	fmt.Fprintln(c.Out)
}

// Runtime prints the total runtime of a command.
func (c *Console) Runtime(d time.Duration) {
	fmt.Fprintln(c.Out)
	_, _ = successColor.Fprintf(c.Out, "⌛️   Magic total runtime: %s\n", d.Round(time.Millisecond))
}

// Command is an entry of the help listing.
type Command struct {
	Name        string
	Description string
}

// Help prints the usage line and the colored command list.
func (c *Console) Help(commands []Command) {
	fmt.Fprintln(c.Out, "\nUsage: magic [command] [options]")
	fmt.Fprintln(c.Out, "\nMagic commands:")
	fmt.Fprintln(c.Out)

	width := 0
	for _, cmd := range commands {
		width = max(width, len(cmd.Name))
	}

	for i, cmd := range commands {
		clr := helpColors[i%len(helpColors)]
		_, _ = clr.Fprintf(c.Out, " %-*s  --", width, cmd.Name)
		fmt.Fprintf(c.Out, "  %s\n", cmd.Description)
	}
}

// ConfirmCreateProject asks whether a project should be created in dir.
// It returns false without reading when the console is not interactive.
func (c *Console) ConfirmCreateProject(dir string) (bool, error) {
	c.Warn("No magic.config file found in this directory...")
	if !c.Interactive {
		return false, nil
	}

	fmt.Fprintln(c.Out)
	_, _ = promptColor.Fprintln(c.Out, "✨   Would you like to create a new project here? (y/n)")
	_, _ = pathColor.Fprintf(c.Out, "     > %s\n", dir)

	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}

	return IsYes(line), nil
}

// IsYes reports whether answer accepts a prompt.
func IsYes(answer string) bool {
	switch validation.SanitizeInput(strings.TrimSpace(answer)) {
	case "y", "yes", "Y", "Yes", "tuta och kör":
		return true
	default:
		return false
	}
}
