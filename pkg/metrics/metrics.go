package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects real-time performance metrics for the buffer
// pool manager.
type MetricsCollector struct {
	// readPage metrics
	readPageExecuted uint64
	readPageFailed   uint64
	totalReadPageTime uint64 // in nanoseconds
	readPageHits     uint64
	readPageMisses   uint64

	// allocPage metrics
	allocPageExecuted   uint64
	allocPageFailed     uint64
	totalAllocPageTime  uint64

	// unpinPage metrics
	unpinPageExecuted uint64
	unpinPageFailed   uint64
	totalUnpinPageTime uint64

	// flushFile metrics
	flushFileExecuted  uint64
	flushFileFailed    uint64
	totalFlushFileTime uint64

	// disposePage metrics
	disposePageExecuted  uint64
	disposePageFailed    uint64
	totalDisposePageTime uint64

	// Replacement engine metrics
	evictions     uint64
	bufferExceeded uint64

	// Connection metrics (for HTTP server)
	activeConnections uint64
	totalConnections  uint64

	// Operation timing buckets (histogram)
	mu                sync.RWMutex
	readPageTimings   *TimingHistogram
	allocPageTimings  *TimingHistogram
	unpinPageTimings  *TimingHistogram
	flushFileTimings  *TimingHistogram

	// Start time for uptime calculation
	startTime time.Time
}

// TimingHistogram stores timing data in buckets for histogram generation
type TimingHistogram struct {
	// Buckets: <1ms, 1-10ms, 10-100ms, 100ms-1s, >1s
	bucket0_1ms      uint64 // 0-1ms
	bucket1_10ms     uint64 // 1-10ms
	bucket10_100ms   uint64 // 10-100ms
	bucket100_1000ms uint64 // 100-1000ms
	bucket1000ms     uint64 // >1s

	// P50, P95, P99 tracking
	mu               sync.Mutex
	recentTimings    []time.Duration // Keep last 1000 timings
	maxRecentTimings int
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		readPageTimings:  NewTimingHistogram(1000),
		allocPageTimings: NewTimingHistogram(1000),
		unpinPageTimings: NewTimingHistogram(1000),
		flushFileTimings: NewTimingHistogram(1000),
		startTime:        time.Now(),
	}
}

// NewTimingHistogram creates a new timing histogram
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// RecordReadPage records a readPage call. hit distinguishes a directory
// hit from a miss that went to the File.
func (mc *MetricsCollector) RecordReadPage(duration time.Duration, success, hit bool) {
	atomic.AddUint64(&mc.readPageExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.readPageFailed, 1)
	}
	if hit {
		atomic.AddUint64(&mc.readPageHits, 1)
	} else {
		atomic.AddUint64(&mc.readPageMisses, 1)
	}
	atomic.AddUint64(&mc.totalReadPageTime, uint64(duration.Nanoseconds()))
	mc.readPageTimings.Record(duration)
}

// RecordAllocPage records an allocPage call.
func (mc *MetricsCollector) RecordAllocPage(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.allocPageExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.allocPageFailed, 1)
	}
	atomic.AddUint64(&mc.totalAllocPageTime, uint64(duration.Nanoseconds()))
	mc.allocPageTimings.Record(duration)
}

// RecordUnpinPage records an unPinPage call.
func (mc *MetricsCollector) RecordUnpinPage(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.unpinPageExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.unpinPageFailed, 1)
	}
	atomic.AddUint64(&mc.totalUnpinPageTime, uint64(duration.Nanoseconds()))
	mc.unpinPageTimings.Record(duration)
}

// RecordFlushFile records a flushFile call.
func (mc *MetricsCollector) RecordFlushFile(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.flushFileExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.flushFileFailed, 1)
	}
	atomic.AddUint64(&mc.totalFlushFileTime, uint64(duration.Nanoseconds()))
	mc.flushFileTimings.Record(duration)
}

// RecordDisposePage records a disposePage call.
func (mc *MetricsCollector) RecordDisposePage(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.disposePageExecuted, 1)
	if !success {
		atomic.AddUint64(&mc.disposePageFailed, 1)
	}
	atomic.AddUint64(&mc.totalDisposePageTime, uint64(duration.Nanoseconds()))
}

// RecordEviction records one CLOCK sweep victim selection.
func (mc *MetricsCollector) RecordEviction() {
	atomic.AddUint64(&mc.evictions, 1)
}

// RecordBufferExceeded records an allocBuf sweep that found no victim.
func (mc *MetricsCollector) RecordBufferExceeded() {
	atomic.AddUint64(&mc.bufferExceeded, 1)
}

// RecordConnectionStart/End track HTTP connection concurrency.
func (mc *MetricsCollector) RecordConnectionStart() {
	atomic.AddUint64(&mc.totalConnections, 1)
	atomic.AddUint64(&mc.activeConnections, 1)
}

func (mc *MetricsCollector) RecordConnectionEnd() {
	atomic.AddUint64(&mc.activeConnections, ^uint64(0)) // Decrement using two's complement
}

// Record adds a timing to the histogram
func (th *TimingHistogram) Record(duration time.Duration) {
	ms := duration.Milliseconds()
	switch {
	case ms < 1:
		atomic.AddUint64(&th.bucket0_1ms, 1)
	case ms < 10:
		atomic.AddUint64(&th.bucket1_10ms, 1)
	case ms < 100:
		atomic.AddUint64(&th.bucket10_100ms, 1)
	case ms < 1000:
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	default:
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, duration)
}

// GetBuckets returns the histogram bucket counts
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// GetPercentiles calculates P50, P95, P99 from recent timings
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)

	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	p50idx := len(sorted) * 50 / 100
	p95idx := len(sorted) * 95 / 100
	p99idx := len(sorted) * 99 / 100

	return map[string]time.Duration{
		"p50": sorted[p50idx],
		"p95": sorted[p95idx],
		"p99": sorted[p99idx],
	}
}

// GetMetrics returns a snapshot of all metrics
func (mc *MetricsCollector) GetMetrics() map[string]interface{} {
	readPageExecuted := atomic.LoadUint64(&mc.readPageExecuted)
	readPageFailed := atomic.LoadUint64(&mc.readPageFailed)
	totalReadPageTime := atomic.LoadUint64(&mc.totalReadPageTime)
	readPageHits := atomic.LoadUint64(&mc.readPageHits)
	readPageMisses := atomic.LoadUint64(&mc.readPageMisses)

	allocPageExecuted := atomic.LoadUint64(&mc.allocPageExecuted)
	allocPageFailed := atomic.LoadUint64(&mc.allocPageFailed)
	totalAllocPageTime := atomic.LoadUint64(&mc.totalAllocPageTime)

	unpinPageExecuted := atomic.LoadUint64(&mc.unpinPageExecuted)
	unpinPageFailed := atomic.LoadUint64(&mc.unpinPageFailed)
	totalUnpinPageTime := atomic.LoadUint64(&mc.totalUnpinPageTime)

	flushFileExecuted := atomic.LoadUint64(&mc.flushFileExecuted)
	flushFileFailed := atomic.LoadUint64(&mc.flushFileFailed)
	totalFlushFileTime := atomic.LoadUint64(&mc.totalFlushFileTime)

	disposePageExecuted := atomic.LoadUint64(&mc.disposePageExecuted)
	disposePageFailed := atomic.LoadUint64(&mc.disposePageFailed)

	evictions := atomic.LoadUint64(&mc.evictions)
	bufferExceeded := atomic.LoadUint64(&mc.bufferExceeded)

	activeConnections := atomic.LoadUint64(&mc.activeConnections)
	totalConnections := atomic.LoadUint64(&mc.totalConnections)

	var avgReadPageTime, avgAllocPageTime, avgUnpinPageTime, avgFlushFileTime float64
	if readPageExecuted > 0 {
		avgReadPageTime = float64(totalReadPageTime) / float64(readPageExecuted) / 1e6
	}
	if allocPageExecuted > 0 {
		avgAllocPageTime = float64(totalAllocPageTime) / float64(allocPageExecuted) / 1e6
	}
	if unpinPageExecuted > 0 {
		avgUnpinPageTime = float64(totalUnpinPageTime) / float64(unpinPageExecuted) / 1e6
	}
	if flushFileExecuted > 0 {
		avgFlushFileTime = float64(totalFlushFileTime) / float64(flushFileExecuted) / 1e6
	}

	var hitRate float64
	totalReads := readPageHits + readPageMisses
	if totalReads > 0 {
		hitRate = float64(readPageHits) / float64(totalReads) * 100
	}

	uptime := time.Since(mc.startTime)

	return map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),

		"read_page": map[string]interface{}{
			"total":              readPageExecuted,
			"failed":             readPageFailed,
			"success_rate":       calculateSuccessRate(readPageExecuted, readPageFailed),
			"hits":               readPageHits,
			"misses":             readPageMisses,
			"hit_rate":           hitRate,
			"avg_duration_ms":    avgReadPageTime,
			"timing_histogram":   mc.readPageTimings.GetBuckets(),
			"timing_percentiles": mc.readPageTimings.GetPercentiles(),
		},

		"alloc_page": map[string]interface{}{
			"total":              allocPageExecuted,
			"failed":             allocPageFailed,
			"success_rate":       calculateSuccessRate(allocPageExecuted, allocPageFailed),
			"avg_duration_ms":    avgAllocPageTime,
			"timing_histogram":   mc.allocPageTimings.GetBuckets(),
			"timing_percentiles": mc.allocPageTimings.GetPercentiles(),
		},

		"unpin_page": map[string]interface{}{
			"total":              unpinPageExecuted,
			"failed":             unpinPageFailed,
			"success_rate":       calculateSuccessRate(unpinPageExecuted, unpinPageFailed),
			"avg_duration_ms":    avgUnpinPageTime,
			"timing_histogram":   mc.unpinPageTimings.GetBuckets(),
			"timing_percentiles": mc.unpinPageTimings.GetPercentiles(),
		},

		"flush_file": map[string]interface{}{
			"total":              flushFileExecuted,
			"failed":             flushFileFailed,
			"success_rate":       calculateSuccessRate(flushFileExecuted, flushFileFailed),
			"avg_duration_ms":    avgFlushFileTime,
			"timing_histogram":   mc.flushFileTimings.GetBuckets(),
			"timing_percentiles": mc.flushFileTimings.GetPercentiles(),
		},

		"dispose_page": map[string]interface{}{
			"total":        disposePageExecuted,
			"failed":       disposePageFailed,
			"success_rate": calculateSuccessRate(disposePageExecuted, disposePageFailed),
		},

		"replacement": map[string]interface{}{
			"evictions":       evictions,
			"buffer_exceeded": bufferExceeded,
		},

		"connections": map[string]interface{}{
			"active": activeConnections,
			"total":  totalConnections,
		},
	}
}

// Reset resets all metrics to zero
func (mc *MetricsCollector) Reset() {
	atomic.StoreUint64(&mc.readPageExecuted, 0)
	atomic.StoreUint64(&mc.readPageFailed, 0)
	atomic.StoreUint64(&mc.totalReadPageTime, 0)
	atomic.StoreUint64(&mc.readPageHits, 0)
	atomic.StoreUint64(&mc.readPageMisses, 0)

	atomic.StoreUint64(&mc.allocPageExecuted, 0)
	atomic.StoreUint64(&mc.allocPageFailed, 0)
	atomic.StoreUint64(&mc.totalAllocPageTime, 0)

	atomic.StoreUint64(&mc.unpinPageExecuted, 0)
	atomic.StoreUint64(&mc.unpinPageFailed, 0)
	atomic.StoreUint64(&mc.totalUnpinPageTime, 0)

	atomic.StoreUint64(&mc.flushFileExecuted, 0)
	atomic.StoreUint64(&mc.flushFileFailed, 0)
	atomic.StoreUint64(&mc.totalFlushFileTime, 0)

	atomic.StoreUint64(&mc.disposePageExecuted, 0)
	atomic.StoreUint64(&mc.disposePageFailed, 0)
	atomic.StoreUint64(&mc.totalDisposePageTime, 0)

	atomic.StoreUint64(&mc.evictions, 0)
	atomic.StoreUint64(&mc.bufferExceeded, 0)

	atomic.StoreUint64(&mc.totalConnections, 0)
	// Don't reset activeConnections as it represents current state

	mc.mu.Lock()
	mc.readPageTimings = NewTimingHistogram(1000)
	mc.allocPageTimings = NewTimingHistogram(1000)
	mc.unpinPageTimings = NewTimingHistogram(1000)
	mc.flushFileTimings = NewTimingHistogram(1000)
	mc.mu.Unlock()

	mc.startTime = time.Now()
}

// Helper functions

func calculateSuccessRate(total, failed uint64) float64 {
	if total == 0 {
		return 0
	}
	succeeded := total - failed
	return float64(succeeded) / float64(total) * 100
}
