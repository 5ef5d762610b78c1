// Command jsonapiq compiles JSON:API style query strings into query specs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/jsonapiq/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	// stdout carries the command's own report; stderr gets the summary
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(cli.GetExitCode(err))
}
