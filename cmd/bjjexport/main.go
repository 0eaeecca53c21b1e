// Command bjjexport renders BJJ Social records from JSON or YAML files into
// standalone HTML documents.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/cli"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()

	err := cli.Execute(ctx, cli.Config{
		Version: Version + " (built " + BuildTime + ")",
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Logger:  log,
	}, os.Args[1:])
	if err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}
