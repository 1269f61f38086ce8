package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coldvault/internal/services"
)

// Exit codes, stable for scripting.
const (
	exitOK                 = 0
	exitGeneral            = 1
	exitNotFound           = 2
	exitPermission         = 3
	exitInsufficientSpace  = 4
	exitVerificationFailed = 5
	exitMissingTool        = 6
	exitCancelled          = 7
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, services.ErrCancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.Is(err, services.ErrNotFound):
		return exitNotFound
	case errors.Is(err, services.ErrPermission):
		return exitPermission
	case errors.Is(err, services.ErrInsufficientSpace):
		return exitInsufficientSpace
	case errors.Is(err, services.ErrIntegrity), errors.Is(err, services.ErrMetadataCorrupt):
		return exitVerificationFailed
	case errors.Is(err, services.ErrToolUnavailable):
		return exitMissingTool
	default:
		return exitGeneral
	}
}
