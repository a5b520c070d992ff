package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler derives a context that is cancelled by the first
// SIGINT or SIGTERM. A second signal exits the process with status 1.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go watchSignals(ctx, cancel, sigs)

	return ctx, func() {
		signal.Stop(sigs)
		cancel()
	}
}

func watchSignals(ctx context.Context, cancel context.CancelFunc, sigs <-chan os.Signal) {
	done := ctx.Done()
	for caught := false; ; {
		select {
		case sig := <-sigs:
			if caught {
				fmt.Fprintf(os.Stderr, "\n%s again, exiting now\n", sig)
				os.Exit(1)
			}
			caught = true
			fmt.Fprintf(os.Stderr, "\n%s received, shutting down (repeat to force)\n", sig)
			cancel()
			done = nil
		case <-done:
			return
		}
	}
}
