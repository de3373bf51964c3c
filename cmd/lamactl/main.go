package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tellingsounds/lama/internal/cmd/lamactl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := lamactl.Execute(ctx, os.Args[1:], lamactl.StdIO()); err != nil {
		fmt.Fprintln(os.Stderr, lamactl.FormatError(err))
		stop()
		os.Exit(1)
	}
}
