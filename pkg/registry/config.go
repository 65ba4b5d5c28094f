package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

// Configured sets up the device registry based on flags. Devices are read
// from a JSON file; entries failing validation are excluded and logged, the
// remaining devices are kept.
func Configured() *Registry {
	configPath := lflag.String("device-config", "devices.json", "Path to the device configuration JSON file")

	r := New()

	lflag.Do(func() {
		if *configPath == "" {
			return
		}
		ctx := context.Background()
		if _, err := os.Stat(*configPath); os.IsNotExist(err) {
			log.Ctx(ctx).WarnContext(ctx, "device config not found, starting with an empty registry",
				slog.String("path", *configPath))
			return
		}
		if err := r.LoadFile(ctx, *configPath); err != nil {
			panic(fmt.Sprintf("failed to load device config: %v", err))
		}
	})

	return r
}

// LoadFile reads device configurations from a JSON file and upserts them.
// Invalid entries are skipped, not fatal.
func (r *Registry) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read device config %s: %w", path, err)
	}

	var configs []types.Device
	if err := json.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("failed to parse device config %s: %w", path, err)
	}

	var loaded int
	for _, c := range configs {
		// runtime state never comes from the config file
		c.Status = ""
		c.LastSwitchAt = time.Time{}
		c.RuntimeTodayMinutes = 0
		c.BlockedReason = ""

		if err := r.Upsert(c); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping invalid device config",
				slog.String("device", c.Name),
				slog.Any("error", err),
			)
			continue
		}
		loaded++
	}
	log.Ctx(ctx).InfoContext(ctx, "loaded device config",
		slog.String("path", path),
		slog.Int("devices", loaded),
		slog.Int("skipped", len(configs)-loaded),
	)
	return nil
}
