// Package lifecycle handles signal-driven shutdown: catch SIGINT/SIGTERM/
// SIGQUIT/SIGHUP, stop accepting new connections, drain every in-flight
// session worker, and compute the process exit code. This generalizes the
// teacher's signal.NotifyContext(ctx, SIGINT, SIGTERM) one-liner in
// cmd/rubin-node/main.go to the fuller signal set and exit-code convention
// spec.md §6 requires (128+signal number), which NotifyContext alone
// cannot report since it erases which signal actually fired.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"flagbroker.dev/broker/internal/dispatcher"
	"flagbroker.dev/broker/internal/obslog"
	"flagbroker.dev/broker/internal/transport"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP}

// Run starts the dispatcher's accept loop and blocks until a shutdown
// signal arrives or parent is cancelled (the latter is how tests drive a
// deterministic shutdown without sending the process a real signal). It
// then closes the listener, terminates every Game, drains every session
// worker, runs one final reap, and returns the process exit code.
func Run(parent context.Context, ln *transport.Listener, disp *dispatcher.Dispatcher, log *obslog.Logger) int {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	exitCode := 0
	go func() {
		select {
		case sig := <-sigCh:
			exitCode = 128 + signalNumber(sig)
			log.Printf("lifecycle", "signal=%v shutting down", sig)
			cancel()
		case <-parent.Done():
		}
	}()

	acceptDone := make(chan struct{})
	go func() {
		disp.Run(ctx)
		close(acceptDone)
	}()

	<-ctx.Done()
	_ = ln.Close()
	<-acceptDone

	disp.Registry().TerminateAll()
	disp.Wait()
	if freed := disp.Registry().Reap(); freed > 0 {
		log.Printf("lifecycle", "reaped %d game(s) during drain", freed)
	}
	log.Printf("lifecycle", "shutdown complete exit=%d", exitCode)
	return exitCode
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}
