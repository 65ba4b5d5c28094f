package server

import (
	"encoding/json"
	"net/http"

	"github.com/solarflow/solarflow/pkg/types"
)

// statusResponse is the live view of the system for dashboards.
type statusResponse struct {
	Ready    bool                 `json:"ready"`
	Snapshot *types.PowerSnapshot `json:"snapshot,omitempty"`
	Metrics  *types.DerivedMetrics `json:"metrics,omitempty"`
	Today    types.DailyTotals    `json:"today"`
	Devices  []types.Device       `json:"devices"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Today:   s.monitor.Totals(),
		Devices: s.reg.ListDevices(),
	}
	if snapshot, metrics, ok := s.monitor.Status(); ok {
		resp.Ready = true
		resp.Snapshot = &snapshot
		resp.Metrics = &metrics
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		panic(http.ErrAbortHandler)
	}
}
