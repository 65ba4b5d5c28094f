package balance

import (
	"testing"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	now := time.Now()

	t.Run("feeding in with surplus", func(t *testing.T) {
		m, err := Compute(types.PowerSnapshot{
			Timestamp: now,
			PVPower:   4235,
			LoadPower: 1842,
			GridPower: -2393,
		})
		require.NoError(t, err)
		assert.Equal(t, 1842.0, m.SelfConsumption)
		assert.Equal(t, 100.0, m.AutarkyRate)
		assert.Equal(t, 2393.0, m.Surplus)
		assert.Equal(t, types.GridDirectionFeeding, m.GridDirection)
		assert.Equal(t, now, m.Timestamp)
	})

	t.Run("drawing from grid", func(t *testing.T) {
		m, err := Compute(types.PowerSnapshot{
			PVPower:   500,
			LoadPower: 2000,
			GridPower: 1500,
		})
		require.NoError(t, err)
		assert.Equal(t, 500.0, m.SelfConsumption)
		assert.Equal(t, 25.0, m.AutarkyRate)
		assert.Equal(t, 0.0, m.Surplus)
		assert.Equal(t, types.GridDirectionDrawing, m.GridDirection)
	})

	t.Run("battery discharge counts as own production", func(t *testing.T) {
		m, err := Compute(types.PowerSnapshot{
			PVPower:      1000,
			LoadPower:    1500,
			BatteryPower: 800,
			GridPower:    -300,
		})
		require.NoError(t, err)
		assert.Equal(t, 1500.0, m.SelfConsumption)
		assert.Equal(t, 100.0, m.AutarkyRate)
		assert.Equal(t, 300.0, m.Surplus)
	})

	t.Run("battery charging does not count", func(t *testing.T) {
		m, err := Compute(types.PowerSnapshot{
			PVPower:      3000,
			LoadPower:    1000,
			BatteryPower: -1500,
			GridPower:    -500,
		})
		require.NoError(t, err)
		assert.Equal(t, 1000.0, m.SelfConsumption)
		assert.Equal(t, 2000.0, m.Surplus)
	})

	t.Run("zero load means full autarky", func(t *testing.T) {
		m, err := Compute(types.PowerSnapshot{PVPower: 1200, GridPower: -1200})
		require.NoError(t, err)
		assert.Equal(t, 100.0, m.AutarkyRate)
		assert.Equal(t, 0.0, m.SelfConsumption)
		assert.Equal(t, 1200.0, m.Surplus)
	})

	t.Run("self consumption never exceeds load", func(t *testing.T) {
		for _, snap := range []types.PowerSnapshot{
			{PVPower: 0, LoadPower: 0},
			{PVPower: 5000, LoadPower: 100, GridPower: -4900},
			{PVPower: 100, LoadPower: 5000, GridPower: 4900},
			{PVPower: 2500, LoadPower: 2500},
		} {
			m, err := Compute(snap)
			require.NoError(t, err)
			assert.LessOrEqual(t, m.SelfConsumption, snap.LoadPower)
			assert.GreaterOrEqual(t, m.Surplus, 0.0)
		}
	})

	t.Run("negative load rejected", func(t *testing.T) {
		_, err := Compute(types.PowerSnapshot{LoadPower: -10})
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})

	t.Run("negative pv rejected", func(t *testing.T) {
		_, err := Compute(types.PowerSnapshot{PVPower: -1, LoadPower: 100})
		assert.ErrorIs(t, err, ErrInvalidSnapshot)
	})
}
