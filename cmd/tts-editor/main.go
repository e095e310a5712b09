// main package for the tts-editor command line
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/tts-editor/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := cli.Execute(ctx, cli.NewRootOptions(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}
