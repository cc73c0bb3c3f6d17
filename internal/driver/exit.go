package driver

import (
	"context"
	"errors"

	"github.com/vk/buildgrid/internal/bgerrors"
	"github.com/vk/buildgrid/internal/scheduler"
)

// Exit codes per spec §6 "Exit codes (driver layer)".
const (
	ExitOK          = 0
	ExitFailed      = 1
	ExitAborted     = 2
	ExitInterrupted = 130
)

// ExitCode maps a Build result to the driver-layer exit code spec §6 pins.
func ExitCode(summary scheduler.Summary, err error) int {
	if err != nil {
		var be *bgerrors.Error
		if errors.As(err, &be) && be.Kind == bgerrors.Cancelled {
			return ExitInterrupted
		}
		if errors.Is(err, context.Canceled) {
			return ExitInterrupted
		}
		return ExitAborted
	}
	if len(summary.Failed) > 0 {
		return ExitFailed
	}
	return ExitOK
}
