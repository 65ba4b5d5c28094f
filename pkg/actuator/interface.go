// Package actuator delivers switch commands to the physical relays.
package actuator

import (
	"context"
	"errors"

	"github.com/solarflow/solarflow/pkg/types"
)

// ErrActuationFailed is returned when a command could not be delivered to the
// relay transport. The registry state is still updated by the caller; the
// next cycle re-evaluates and retries.
var ErrActuationFailed = errors.New("actuation failed")

// Bridge defines the interface for dispatching switch commands to devices.
type Bridge interface {
	// Switch dispatches a single command.
	Switch(ctx context.Context, cmd types.SwitchCommand) error

	// Lifecycle
	Close() error
}
