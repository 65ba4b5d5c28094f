package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/registry"
	"github.com/solarflow/solarflow/pkg/types"
)

// deviceView augments a device with the hysteresis hold left over from the
// most recent scheduler cycle, so dashboards can show why a transition is
// being suppressed.
type deviceView struct {
	types.Device
	HysteresisRemainingSeconds float64 `json:"hysteresisRemainingSeconds,omitempty"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	holds := make(map[string]time.Duration)
	for _, h := range s.monitor.Holds() {
		holds[h.Device] = h.Remaining
	}

	devices := s.reg.ListDevices()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, deviceView{
			Device:                     d,
			HysteresisRemainingSeconds: holds[d.Name].Seconds(),
		})
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// handleDeviceOverride engages or clears the manual override on a device.
// While manual, the scheduler leaves the device alone; clearing hands it back
// to automatic control on the next cycle.
func (s *Server) handleDeviceOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.requireAdmin(w, r) {
		return
	}

	name := r.PathValue("name")

	var req struct {
		Manual bool `json:"manual"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.reg.SetManual(name, req.Manual); err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeJSONError(w, "device not found", http.StatusNotFound)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to set manual override", slog.String("device", name), slog.Any("error", err))
		writeJSONError(w, "failed to set override", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "manual override changed",
		slog.String("device", name),
		slog.Bool("manual", req.Manual),
	)

	device, err := s.reg.Get(name)
	if err != nil {
		writeJSONError(w, "device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(device); err != nil {
		panic(http.ErrAbortHandler)
	}
}
