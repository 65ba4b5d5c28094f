package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/registry"
	"github.com/solarflow/solarflow/pkg/types"
)

// Apply records a cycle's Result in the registry: switch commands update
// status and last-switch timestamps, blocked devices get their reason set,
// and devices whose blocking condition lifted return to off. A command for a
// device missing from the registry is dropped and logged; the cycle
// continues. It returns the commands that were actually applied.
func Apply(ctx context.Context, reg *registry.Registry, res Result, now time.Time) []types.SwitchCommand {
	applied := res.Commands[:0:0]
	for _, cmd := range res.Commands {
		status := types.DeviceStatusOff
		if cmd.Action == types.SwitchActionOn {
			status = types.DeviceStatusOn
		}
		if err := reg.RecordTransition(cmd.Device, status, now); err != nil {
			if errors.Is(err, registry.ErrDeviceNotFound) {
				log.Ctx(ctx).WarnContext(ctx, "dropping switch command for unknown device",
					slog.String("device", cmd.Device),
					slog.String("action", string(cmd.Action)),
				)
				continue
			}
			log.Ctx(ctx).ErrorContext(ctx, "failed to record transition",
				slog.String("device", cmd.Device),
				slog.Any("error", err),
			)
			continue
		}
		applied = append(applied, cmd)
		log.Ctx(ctx).InfoContext(ctx, "device switched",
			slog.String("device", cmd.Device),
			slog.String("action", string(cmd.Action)),
			slog.String("reason", cmd.Reason),
		)
	}

	for _, name := range res.Unblocked {
		if err := reg.Unblock(name); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unblock device", slog.String("device", name), slog.Any("error", err))
		}
	}
	for _, b := range res.Blocked {
		if err := reg.MarkBlocked(b.Device, b.Reason); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to mark device blocked", slog.String("device", b.Device), slog.Any("error", err))
		}
	}

	return applied
}
