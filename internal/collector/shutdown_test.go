package collector

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// TestSetupSignalHandler tests that the signal handler context works
func TestSetupSignalHandler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	var called atomic.Bool
	parent, parentCancel := context.WithCancel(context.Background())
	defer parentCancel()

	ctx, stop := SetupSignalHandler(parent, func() { called.Store(true) })
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	p, _ := os.FindProcess(os.Getpid())
	p.Signal(os.Interrupt)

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context should be cancelled after signal")
	}

	if !called.Load() {
		t.Error("onSignal should have been called")
	}
}

// TestSetupSignalHandler_Stop tests that stop cancels without any signal
func TestSetupSignalHandler_Stop(t *testing.T) {
	var called atomic.Bool
	ctx, stop := SetupSignalHandler(context.Background(), func() { called.Store(true) })

	stop()

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context should be cancelled by stop")
	}
	if called.Load() {
		t.Error("onSignal must not run without a signal")
	}
}

// TestSetupSignalHandler_ParentCancel tests that the derived context follows its parent
func TestSetupSignalHandler_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SetupSignalHandler(parent, nil)
	defer stop()

	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Fatal("Context should be cancelled with its parent")
	}
}
