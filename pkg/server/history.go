package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/solarflow/solarflow/pkg/log"
)

func (s *Server) handleHistoryDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, end, err := parseTimeRange(r, 30*24*time.Hour, 366*24*time.Hour)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	history, err := s.storage.GetDailyHistory(ctx, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get daily history", slog.Any("error", err))
		writeJSONError(w, "failed to get daily history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	setHistoryCacheControl(w, end)

	if err := json.NewEncoder(w).Encode(history); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHistoryEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start, end, err := parseTimeRange(r, 24*time.Hour, 7*24*time.Hour)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.storage.GetSwitchEvents(ctx, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get switch events", slog.Any("error", err))
		writeJSONError(w, "failed to get switch events", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	setHistoryCacheControl(w, end)

	if err := json.NewEncoder(w).Encode(events); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// setHistoryCacheControl caches completed ranges aggressively since finalized
// records never change; open-ended ranges only briefly.
func setHistoryCacheControl(w http.ResponseWriter, end time.Time) {
	today := time.Now().Truncate(24 * time.Hour)
	if end.Before(today) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}
}

func parseTimeRange(r *http.Request, defaultSpan, maxSpan time.Duration) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		end := time.Now()
		start := end.Add(-defaultSpan)
		return start, end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxSpan {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed %s", maxSpan)
	}

	return start, end, nil
}
