// Gray Logic Operator - building management web console automation
//
// This is the command line entry point. It forces, releases and reads
// points on the building management web console through a headless browser,
// runs batches of such operations, runs the unattended rule controller, and
// reads every configured point on a schedule.
//
// Every operation attempt is appended to the action history (JSON Lines,
// SQLite, and optionally MQTT and InfluxDB).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, openBrowser)
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
// Separated from main for testability.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, opener sessionOpener) int {
	root := newRootCmd(opener)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errOperationsFailed):
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
