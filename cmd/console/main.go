package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/riordi80/vocational-training-final-project/cmd/console/cli"
	"github.com/riordi80/vocational-training-final-project/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.RootOptions{
		Manifest: web.Routes,
		Serve:    serve,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
	err := root.ExecuteContext(ctx)
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		_, _ = fmt.Fprintf(os.Stderr, "console: %v\n", err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
