package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// SlowOperationLog tracks and logs buffer pool operations that exceed a
// threshold duration.
type SlowOperationLog struct {
	threshold      time.Duration
	maxEntries     int
	logFile        *os.File
	entries        []SlowOperationEntry
	mu             sync.RWMutex
	enabled        bool
	logToFile      bool
	includeProfile bool // Include profiling information
}

// SlowOperationEntry represents a single slow operation log entry
type SlowOperationEntry struct {
	Timestamp     time.Time         `json:"timestamp"`
	Duration      time.Duration     `json:"duration_ns"`
	DurationMS    float64           `json:"duration_ms"`
	Operation     string            `json:"operation"` // "readPage", "allocPage", "unPinPage", "flushFile", "disposePage"
	File          string            `json:"file"`
	PageNo        int               `json:"page_no,omitempty"`
	FramesScanned int               `json:"frames_scanned,omitempty"`
	VictimFrame   int               `json:"victim_frame,omitempty"`
	Evicted       bool              `json:"evicted,omitempty"`
	Error         string            `json:"error,omitempty"`
	RequestInfo   map[string]string `json:"request_info,omitempty"` // remote addr, request ID
}

// SlowOperationLogConfig holds configuration for the slow operation log
type SlowOperationLogConfig struct {
	Threshold      time.Duration // Minimum duration to log (default: 100ms)
	MaxEntries     int           // Maximum in-memory entries (default: 1000)
	LogFilePath    string        // Optional file path for persistent logging
	Enabled        bool          // Enable/disable logging (default: true)
	IncludeProfile bool          // Include profiling information (default: true)
}

// DefaultSlowOperationLogConfig returns default configuration
func DefaultSlowOperationLogConfig() *SlowOperationLogConfig {
	return &SlowOperationLogConfig{
		Threshold:      100 * time.Millisecond,
		MaxEntries:     1000,
		Enabled:        true,
		IncludeProfile: true,
	}
}

// NewSlowOperationLog creates a new slow operation log
func NewSlowOperationLog(config *SlowOperationLogConfig) (*SlowOperationLog, error) {
	if config == nil {
		config = DefaultSlowOperationLogConfig()
	}

	sol := &SlowOperationLog{
		threshold:      config.Threshold,
		maxEntries:     config.MaxEntries,
		entries:        make([]SlowOperationEntry, 0, config.MaxEntries),
		enabled:        config.Enabled,
		includeProfile: config.IncludeProfile,
	}

	// Open log file if path is provided
	if config.LogFilePath != "" {
		f, err := os.OpenFile(config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open slow operation log file: %w", err)
		}
		sol.logFile = f
		sol.logToFile = true
	}

	return sol, nil
}

// LogOperation logs an operation if it exceeds the threshold
func (sol *SlowOperationLog) LogOperation(entry SlowOperationEntry) {
	if !sol.enabled {
		return
	}

	// Only log if duration exceeds threshold
	if entry.Duration < sol.threshold {
		return
	}

	// Set timestamp and duration in ms
	entry.Timestamp = time.Now()
	entry.DurationMS = float64(entry.Duration.Nanoseconds()) / 1e6

	sol.mu.Lock()
	defer sol.mu.Unlock()

	// Add to in-memory buffer
	if len(sol.entries) >= sol.maxEntries {
		// Remove oldest entry (FIFO)
		sol.entries = sol.entries[1:]
	}
	sol.entries = append(sol.entries, entry)

	// Write to file if enabled
	if sol.logToFile && sol.logFile != nil {
		sol.writeToFile(entry)
	}
}

// writeToFile writes an entry to the log file (caller must hold lock)
func (sol *SlowOperationLog) writeToFile(entry SlowOperationEntry) {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		// Silently ignore errors - logging should not crash the application
		return
	}

	_, _ = sol.logFile.Write(jsonBytes)
	_, _ = sol.logFile.Write([]byte("\n"))
}

// GetEntries returns all slow operation log entries
func (sol *SlowOperationLog) GetEntries() []SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	// Return a copy to prevent modification
	entries := make([]SlowOperationEntry, len(sol.entries))
	copy(entries, sol.entries)
	return entries
}

// GetRecentEntries returns the N most recent entries
func (sol *SlowOperationLog) GetRecentEntries(n int) []SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	if n > len(sol.entries) {
		n = len(sol.entries)
	}

	// Get last n entries
	start := len(sol.entries) - n
	entries := make([]SlowOperationEntry, n)
	copy(entries, sol.entries[start:])
	return entries
}

// GetEntriesByFile returns entries for a specific file
func (sol *SlowOperationLog) GetEntriesByFile(file string) []SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	var filtered []SlowOperationEntry
	for _, entry := range sol.entries {
		if entry.File == file {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// GetEntriesByOperation returns entries for a specific operation type
func (sol *SlowOperationLog) GetEntriesByOperation(operation string) []SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	var filtered []SlowOperationEntry
	for _, entry := range sol.entries {
		if entry.Operation == operation {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// GetEntriesSince returns entries since a specific time
func (sol *SlowOperationLog) GetEntriesSince(since time.Time) []SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	var filtered []SlowOperationEntry
	for _, entry := range sol.entries {
		if entry.Timestamp.After(since) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// GetStatistics returns statistics about slow operations
func (sol *SlowOperationLog) GetStatistics() map[string]interface{} {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	if len(sol.entries) == 0 {
		return map[string]interface{}{
			"total_entries": 0,
			"threshold_ms":  sol.threshold.Milliseconds(),
		}
	}

	// Calculate statistics
	var totalDuration time.Duration
	var maxDuration time.Duration
	var minDuration time.Duration = 1<<63 - 1 // Max int64

	byOperation := make(map[string]int)
	byFile := make(map[string]int)

	for _, entry := range sol.entries {
		totalDuration += entry.Duration
		if entry.Duration > maxDuration {
			maxDuration = entry.Duration
		}
		if entry.Duration < minDuration {
			minDuration = entry.Duration
		}

		byOperation[entry.Operation]++
		if entry.File != "" {
			byFile[entry.File]++
		}
	}

	avgDuration := totalDuration / time.Duration(len(sol.entries))

	return map[string]interface{}{
		"total_entries":   len(sol.entries),
		"threshold_ms":    sol.threshold.Milliseconds(),
		"avg_duration_ms": float64(avgDuration.Nanoseconds()) / 1e6,
		"min_duration_ms": float64(minDuration.Nanoseconds()) / 1e6,
		"max_duration_ms": float64(maxDuration.Nanoseconds()) / 1e6,
		"by_operation":    byOperation,
		"by_file":         byFile,
	}
}

// Clear removes all entries from the log
func (sol *SlowOperationLog) Clear() {
	sol.mu.Lock()
	defer sol.mu.Unlock()

	sol.entries = make([]SlowOperationEntry, 0, sol.maxEntries)
}

// SetThreshold updates the threshold duration
func (sol *SlowOperationLog) SetThreshold(threshold time.Duration) {
	sol.mu.Lock()
	defer sol.mu.Unlock()

	sol.threshold = threshold
}

// GetThreshold returns the current threshold
func (sol *SlowOperationLog) GetThreshold() time.Duration {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	return sol.threshold
}

// Enable enables slow operation logging
func (sol *SlowOperationLog) Enable() {
	sol.mu.Lock()
	defer sol.mu.Unlock()

	sol.enabled = true
}

// Disable disables slow operation logging
func (sol *SlowOperationLog) Disable() {
	sol.mu.Lock()
	defer sol.mu.Unlock()

	sol.enabled = false
}

// IsEnabled returns whether logging is enabled
func (sol *SlowOperationLog) IsEnabled() bool {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	return sol.enabled
}

// ExportToJSON exports all entries to a JSON writer
func (sol *SlowOperationLog) ExportToJSON(w io.Writer) error {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sol.entries)
}

// Close closes the log file if open
func (sol *SlowOperationLog) Close() error {
	sol.mu.Lock()
	defer sol.mu.Unlock()

	if sol.logFile != nil {
		err := sol.logFile.Close()
		sol.logFile = nil
		sol.logToFile = false
		return err
	}
	return nil
}

// GetTopSlowest returns the N slowest operations
func (sol *SlowOperationLog) GetTopSlowest(n int) []SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	if len(sol.entries) == 0 {
		return nil
	}

	// Create a copy for sorting
	entries := make([]SlowOperationEntry, len(sol.entries))
	copy(entries, sol.entries)

	// Sort by duration (descending) using simple insertion sort
	for i := 1; i < len(entries); i++ {
		key := entries[i]
		j := i - 1
		for j >= 0 && entries[j].Duration < key.Duration {
			entries[j+1] = entries[j]
			j--
		}
		entries[j+1] = key
	}

	// Return top N
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// GetSlowestByFile returns the slowest operation for each file
func (sol *SlowOperationLog) GetSlowestByFile() map[string]SlowOperationEntry {
	sol.mu.RLock()
	defer sol.mu.RUnlock()

	slowest := make(map[string]SlowOperationEntry)

	for _, entry := range sol.entries {
		if entry.File == "" {
			continue
		}

		if existing, exists := slowest[entry.File]; !exists || entry.Duration > existing.Duration {
			slowest[entry.File] = entry
		}
	}

	return slowest
}
