package collector

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler derives a context that is cancelled on SIGTERM or SIGINT
// so a run stops between matches and still records its summary. A second
// signal exits immediately. onSignal, if set, runs before cancellation.
func SetupSignalHandler(parent context.Context, onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("[Signal] Received %v, finishing current match...", sig)
			if onSignal != nil {
				onSignal()
			}
			cancel()
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}

		select {
		case sig := <-sigCh:
			log.Printf("[Signal] Received second %v, forcing exit", sig)
			os.Exit(1)
		case <-parent.Done():
			signal.Stop(sigCh)
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
