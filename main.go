package main

import (
	"os"

	"github.com/magic-framework/magic/cmd"
	"github.com/magic-framework/magic/internal/errors"
)

func main() {
	os.Exit(errors.ExitCode(cmd.Execute()))
}
