package scheduler

import (
	"context"
	"testing"

	"github.com/solarflow/solarflow/pkg/registry"
	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	ctx := context.Background()

	newRegistry := func(t *testing.T) *registry.Registry {
		t.Helper()
		reg := registry.New()
		require.NoError(t, reg.Upsert(types.Device{
			Name:               "heater",
			PowerConsumption:   2000,
			Priority:           3,
			SwitchOnThreshold:  2200,
			SwitchOffThreshold: 1800,
		}))
		return reg
	}

	t.Run("records transitions", func(t *testing.T) {
		reg := newRegistry(t)
		res := Result{Commands: []types.SwitchCommand{
			{Device: "heater", Action: types.SwitchActionOn, Reason: "test"},
		}}

		applied := Apply(ctx, reg, res, noon)
		require.Len(t, applied, 1)

		d, err := reg.Get("heater")
		require.NoError(t, err)
		assert.Equal(t, types.DeviceStatusOn, d.Status)
		assert.Equal(t, noon, d.LastSwitchAt)
	})

	t.Run("drops commands for unknown devices", func(t *testing.T) {
		reg := newRegistry(t)
		res := Result{Commands: []types.SwitchCommand{
			{Device: "ghost", Action: types.SwitchActionOn},
			{Device: "heater", Action: types.SwitchActionOn},
		}}

		applied := Apply(ctx, reg, res, noon)
		require.Len(t, applied, 1)
		assert.Equal(t, "heater", applied[0].Device)

		d, err := reg.Get("heater")
		require.NoError(t, err)
		assert.Equal(t, types.DeviceStatusOn, d.Status)
	})

	t.Run("marks blocked devices", func(t *testing.T) {
		reg := newRegistry(t)
		res := Result{Blocked: []Block{{Device: "heater", Reason: "max runtime reached"}}}

		Apply(ctx, reg, res, noon)

		d, err := reg.Get("heater")
		require.NoError(t, err)
		assert.Equal(t, types.DeviceStatusBlocked, d.Status)
		assert.Equal(t, "max runtime reached", d.BlockedReason)
		assert.True(t, d.LastSwitchAt.IsZero(), "blocking is not a switch")
	})

	t.Run("unblocks devices", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.MarkBlocked("heater", "outside allowed time window"))

		Apply(ctx, reg, Result{Unblocked: []string{"heater", "ghost"}}, noon)

		d, err := reg.Get("heater")
		require.NoError(t, err)
		assert.Equal(t, types.DeviceStatusOff, d.Status)
		assert.Empty(t, d.BlockedReason)
	})

	t.Run("switch clears blocked reason", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.MarkBlocked("heater", "max runtime reached"))
		res := Result{Commands: []types.SwitchCommand{
			{Device: "heater", Action: types.SwitchActionOn, Reason: "test"},
		}}

		Apply(ctx, reg, res, noon)

		d, err := reg.Get("heater")
		require.NoError(t, err)
		assert.Equal(t, types.DeviceStatusOn, d.Status)
		assert.Empty(t, d.BlockedReason)
	})
}
