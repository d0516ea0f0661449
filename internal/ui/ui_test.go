package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(t *testing.T, input string, interactive bool) (*Console, *bytes.Buffer) {
	t.Helper()

	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var out bytes.Buffer
	return &Console{Out: &out, In: strings.NewReader(input), Interactive: interactive}, &out
}

func TestBanner(t *testing.T) {
	c, out := newTestConsole(t, "", false)

	c.Banner()

	assert.Equal(t, "\n✨   Magic Framework\n⚠️    "+WIPWarning+"\n\n", out.String())
}

func TestMessages(t *testing.T) {
	c, out := newTestConsole(t, "", false)

	c.Success("Config file created")
	c.Warn("No assets directory found")
	c.Error("Command not found: serve")
	c.Print("plain", nil)

	assert.Equal(t, "✅   Config file created\n"+
		"⚠️    No assets directory found\n"+
		"🛑   Error: Command not found: serve\n"+
		"plain\n", out.String())
}

func TestRuntime(t *testing.T) {
	c, out := newTestConsole(t, "", false)

	c.Runtime(1234567 * time.Microsecond)

	assert.Contains(t, out.String(), "Magic total runtime: 1.235s")
}

func TestHelp(t *testing.T) {
	c, out := newTestConsole(t, "", false)

	c.Help([]Command{
		{Name: "dev", Description: "Start development mode"},
		{Name: "version", Description: "Show the version number and exit"},
	})

	assert.Contains(t, out.String(), "Usage: magic [command] [options]")
	assert.Contains(t, out.String(), " dev      --  Start development mode\n")
	assert.Contains(t, out.String(), " version  --  Show the version number and exit\n")
}

func TestConfirmCreateProject(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		interactive bool
		want        bool
	}{
		{"yes", "y\n", true, true},
		{"Yes without newline", "Yes", true, true},
		{"swedish", "tuta och kör\n", true, true},
		{"no", "n\n", true, false},
		{"empty input", "", true, false},
		{"not a terminal", "y\n", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestConsole(t, tt.input, tt.interactive)

			got, err := c.ConfirmCreateProject("/tmp/game")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "No magic.config file found")
			if tt.interactive {
				assert.Contains(t, out.String(), "> /tmp/game")
			}
		})
	}
}

func TestIsYes(t *testing.T) {
	for _, answer := range []string{"y", "yes", "Y", "Yes", "  y \r\n", "tuta och kör"} {
		assert.True(t, IsYes(answer), answer)
	}
	for _, answer := range []string{"", "n", "no", "YES", "yess"} {
		assert.False(t, IsYes(answer), answer)
	}
}
