package handlers

import (
	"net/http"
	"time"
)

// Health returns a health check handler.
func (h *Handlers) Health(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startTime)
		result := map[string]interface{}{
			"status": "healthy",
			"uptime": uptime.String(),
			"time":   time.Now().Format(time.RFC3339),
		}
		writeSuccess(w, result)
	}
}

// GetStats returns buffer pool occupancy and operation metrics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	_, validFrames := h.bpm.DumpFrames()

	stats := map[string]interface{}{
		"pool_size":    h.bpm.Size(),
		"valid_frames": validFrames,
		"open_files":   len(h.listFiles()),
	}

	if h.metricsCollector != nil {
		stats["operations"] = h.metricsCollector.GetMetrics()
	}

	writeSuccess(w, stats)
}

// DumpFrames returns the full per-frame descriptor state.
func (h *Handlers) DumpFrames(w http.ResponseWriter, r *http.Request) {
	frames, validFrames := h.bpm.DumpFrames()
	writeSuccess(w, map[string]interface{}{
		"frames":       frames,
		"valid_frames": validFrames,
		"pool_size":    h.bpm.Size(),
	})
}
