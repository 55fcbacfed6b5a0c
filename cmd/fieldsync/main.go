// ABOUTME: Entry point for the fieldsync CLI
// ABOUTME: Offline-first login, cache warming and local data inspection

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// Version is set at build time.
var version = "dev"

const banner = `
  __ _      _     _
 / _(_) ___| | __| |___ _   _ _ __   ___
| |_| |/ _ \ |/ _' / __| | | | '_ \ / __|
|  _| |  __/ | (_| \__ \ |_| | | | | (__
|_| |_|\___|_|\__,_|___/\__, |_| |_|\___|
                        |___/
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			cancel()
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		cancel()
		os.Exit(2)
	}
}

// exitError ends the process with code after the command printed its own output.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
