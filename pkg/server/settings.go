package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
)

func (s *Server) getSettingsWithMigration(ctx context.Context) (types.Settings, error) {
	settings, version, err := s.storage.GetSettings(ctx)
	if err != nil {
		return types.Settings{}, err
	}

	// Check for migration
	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		newSettings, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			// Log error but return settings as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			settings = newSettings
			if err := s.storage.SetSettings(ctx, newSettings, types.CurrentSettingsVersion); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
				// Return migrated settings even if save failed, so current request works with new defaults
			}
		}
	}

	return settings, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := s.getSettingsWithMigration(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(settings); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.requireAdmin(w, r) {
		return
	}

	var newSettings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if newSettings.ElectricityPricePerKWH < 0 {
		writeJSONError(w, "electricity price cannot be negative", http.StatusBadRequest)
		return
	}
	if newSettings.NightPricePerKWH < 0 {
		writeJSONError(w, "night price cannot be negative", http.StatusBadRequest)
		return
	}
	if newSettings.FeedInTariffPerKWH < 0 {
		writeJSONError(w, "feed-in tariff cannot be negative", http.StatusBadRequest)
		return
	}
	if newSettings.HysteresisMinutes < 0 {
		writeJSONError(w, "hysteresis minutes cannot be negative", http.StatusBadRequest)
		return
	}

	if err := s.storage.SetSettings(ctx, newSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "settings updated")
	w.WriteHeader(http.StatusOK)
}
