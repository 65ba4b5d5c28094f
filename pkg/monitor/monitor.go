// Package monitor runs the control loop: poll the inverter, derive the
// energy balance, evaluate switching decisions, actuate, and accumulate
// daily statistics. Cycles run strictly sequentially; a slow cycle delays
// the next tick instead of overlapping it.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/actuator"
	"github.com/solarflow/solarflow/pkg/balance"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/metrics"
	"github.com/solarflow/solarflow/pkg/registry"
	"github.com/solarflow/solarflow/pkg/scheduler"
	"github.com/solarflow/solarflow/pkg/stats"
	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
)

// persistInterval bounds how often the open day is written to storage, so a
// crash loses at most a few minutes of accumulated totals.
const persistInterval = 5 * time.Minute

// Source provides the power snapshot for each control cycle.
type Source interface {
	GetPowerSnapshot(ctx context.Context) (types.PowerSnapshot, error)
}

// Monitor owns the control loop.
type Monitor struct {
	source    Source
	reg       *registry.Registry
	bridge    actuator.Bridge
	db        storage.Database
	acc       *stats.Accumulator
	publisher *metrics.Publisher

	interval time.Duration

	// last successful cycle, for energy integration
	lastGood    time.Time
	lastPersist time.Time

	mu           sync.Mutex
	lastSnapshot types.PowerSnapshot
	lastMetrics  types.DerivedMetrics
	haveSnapshot bool
	lastHolds    []scheduler.Hold
}

// Configured sets up the Monitor based on flags.
func Configured(source Source, reg *registry.Registry, bridge actuator.Bridge, db storage.Database, publisher *metrics.Publisher) *Monitor {
	interval := lflag.Duration("update-interval", 5*time.Second, "How often to poll the inverter and evaluate devices")

	m := &Monitor{
		source:    source,
		reg:       reg,
		bridge:    bridge,
		db:        db,
		acc:       stats.New(time.Now()),
		publisher: publisher,
	}

	lflag.Do(func() {
		m.interval = *interval
		if m.interval <= 0 {
			panic("update-interval must be positive")
		}
	})

	return m
}

// New creates a Monitor with the given interval. Primarily used for testing;
// production wiring goes through Configured.
func New(source Source, reg *registry.Registry, bridge actuator.Bridge, db storage.Database, publisher *metrics.Publisher, interval time.Duration) *Monitor {
	return &Monitor{
		source:    source,
		reg:       reg,
		bridge:    bridge,
		db:        db,
		acc:       stats.New(time.Now()),
		publisher: publisher,
		interval:  interval,
	}
}

// Totals returns the open day's accumulated statistics.
func (m *Monitor) Totals() types.DailyTotals {
	return m.acc.Current()
}

// Status returns the most recent snapshot and derived metrics, and whether a
// successful cycle has happened yet.
func (m *Monitor) Status() (types.PowerSnapshot, types.DerivedMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSnapshot, m.lastMetrics, m.haveSnapshot
}

// Holds returns the devices whose transition was suppressed by hysteresis in
// the most recent cycle, with the quiet time still remaining.
func (m *Monitor) Holds() []scheduler.Hold {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduler.Hold(nil), m.lastHolds...)
}

// Run executes the control loop until ctx is canceled. An in-flight cycle
// finishes before Run returns, and the open day is persisted on the way out.
func (m *Monitor) Run(ctx context.Context) error {
	// resume the open day after a restart
	if latest, err := m.db.GetLatestDailyTotals(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load latest daily totals", slog.Any("error", err))
	} else if latest != nil {
		m.acc.Restore(*latest, time.Now())
	}

	log.Ctx(ctx).InfoContext(ctx, "control loop started", slog.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// run one cycle immediately so the API has state before the first tick
	m.runCycle(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			// persist the open day with a fresh context since ctx is gone
			persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.db.UpsertDailyTotals(persistCtx, m.acc.Current(), types.CurrentDailyTotalsVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to persist daily totals on shutdown", slog.Any("error", err))
			}
			log.Ctx(ctx).InfoContext(ctx, "control loop stopped")
			return nil
		case <-ticker.C:
			m.runCycle(ctx, time.Now())
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context, now time.Time) {
	settings, err := m.getSettingsWithMigration(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		return
	}

	snapshot, err := m.source.GetPowerSnapshot(ctx)
	if err != nil {
		// keep the last good state and try again next tick
		log.Ctx(ctx).WarnContext(ctx, "failed to read power snapshot", slog.Any("error", err))
		return
	}

	derived, err := balance.Compute(snapshot)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "skipping cycle on invalid snapshot", slog.Any("error", err))
		return
	}

	var elapsed time.Duration
	if !m.lastGood.IsZero() {
		elapsed = now.Sub(m.lastGood)
	}
	m.lastGood = now

	m.mu.Lock()
	m.lastSnapshot = snapshot
	m.lastMetrics = derived
	m.haveSnapshot = true
	m.mu.Unlock()

	// clear per-day device state before evaluating the first cycle of a new
	// day, so yesterday's runtime caps don't gate today's decisions
	if !m.acc.SameDay(now) {
		m.reg.ResetDaily()
	}

	// the devices as they were during the elapsed interval, before any
	// switching this cycle
	devices := m.reg.ListDevices()

	if !settings.Pause {
		m.evaluateDevices(ctx, derived, settings, now)
	}

	for _, d := range devices {
		if d.Status == types.DeviceStatusOn {
			m.reg.AccumulateRuntime(d.Name, elapsed.Minutes())
		}
	}

	if finalized := m.acc.Ingest(snapshot, derived, devices, elapsed, settings, now); finalized != nil {
		log.Ctx(ctx).InfoContext(ctx, "day rolled over",
			slog.Time("date", finalized.Date),
			slog.Float64("pvEnergyKWH", finalized.PVEnergyKWH),
			slog.Float64("autarkyAvg", finalized.AutarkyAvg),
		)
		if err := m.db.UpsertDailyTotals(ctx, *finalized, types.CurrentDailyTotalsVersion); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to persist finalized day", slog.Any("error", err))
		}
		m.lastPersist = now
	} else if m.lastPersist.IsZero() || now.Sub(m.lastPersist) >= persistInterval {
		if err := m.db.UpsertDailyTotals(ctx, m.acc.Current(), types.CurrentDailyTotalsVersion); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to persist open day", slog.Any("error", err))
		} else {
			m.lastPersist = now
		}
	}

	if m.publisher != nil {
		m.publisher.PublishPower(snapshot, derived)
		m.publisher.PublishDevices(m.reg.ListDevices())
	}
}

// evaluateDevices runs the scheduler over the registry and carries out the
// resulting commands.
func (m *Monitor) evaluateDevices(ctx context.Context, derived types.DerivedMetrics, settings types.Settings, now time.Time) {
	gate := scheduler.NewGate(time.Duration(settings.HysteresisMinutes) * time.Minute)
	res := scheduler.New(gate).Evaluate(ctx, derived, m.reg.ListDevices(), now)
	applied := scheduler.Apply(ctx, m.reg, res, now)

	m.mu.Lock()
	m.lastHolds = res.Holds
	m.mu.Unlock()

	for _, cmd := range applied {
		var power float64
		if d, err := m.reg.Get(cmd.Device); err == nil {
			power = d.PowerConsumption
		}

		if settings.DryRun {
			log.Ctx(ctx).InfoContext(ctx, "dry run, not dispatching command",
				slog.String("device", cmd.Device),
				slog.String("action", string(cmd.Action)),
			)
		} else if err := m.bridge.Switch(ctx, cmd); err != nil {
			// registry already reflects the intent; next cycle re-evaluates
			log.Ctx(ctx).ErrorContext(ctx, "failed to dispatch switch command",
				slog.String("device", cmd.Device),
				slog.Any("error", err),
			)
		}

		event := types.SwitchEvent{
			Timestamp: now,
			Device:    cmd.Device,
			Action:    cmd.Action,
			Reason:    cmd.Reason,
			Power:     power,
		}
		if err := m.db.InsertSwitchEvent(ctx, event); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to insert switch event", slog.Any("error", err))
		}
	}
}

// getSettingsWithMigration loads settings and applies pending migrations,
// writing them back when anything changed.
func (m *Monitor) getSettingsWithMigration(ctx context.Context) (types.Settings, error) {
	settings, version, err := m.db.GetSettings(ctx)
	if err != nil {
		return types.Settings{}, err
	}

	migrated, changed, err := types.MigrateSettings(settings, version)
	if err != nil {
		return types.Settings{}, err
	}
	if changed {
		if err := m.db.SetSettings(ctx, migrated, types.CurrentSettingsVersion); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to persist migrated settings", slog.Any("error", err))
		}
	}
	return migrated, nil
}
