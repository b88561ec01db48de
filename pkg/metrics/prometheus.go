package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// PrometheusExporter exports metrics in Prometheus text format
type PrometheusExporter struct {
	collector       *MetricsCollector
	resourceTracker *ResourceTracker
	namespace       string // Metric namespace prefix (e.g., "pagecache")
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(collector *MetricsCollector, resourceTracker *ResourceTracker) *PrometheusExporter {
	return &PrometheusExporter{
		collector:       collector,
		resourceTracker: resourceTracker,
		namespace:       "pagecache",
	}
}

// SetNamespace sets the metric namespace prefix
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes all metrics in Prometheus text format to the writer
// Format: https://prometheus.io/docs/instrumenting/exposition_formats/
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	// Write uptime metric
	uptime := time.Since(pe.collector.startTime).Seconds()
	if err := pe.writeGauge(w, "uptime_seconds", "Server uptime in seconds", uptime); err != nil {
		return err
	}

	// readPage metrics
	readPageExecuted := atomic.LoadUint64(&pe.collector.readPageExecuted)
	readPageFailed := atomic.LoadUint64(&pe.collector.readPageFailed)
	totalReadPageTime := atomic.LoadUint64(&pe.collector.totalReadPageTime)
	readPageHits := atomic.LoadUint64(&pe.collector.readPageHits)
	readPageMisses := atomic.LoadUint64(&pe.collector.readPageMisses)

	if err := pe.writeCounter(w, "read_page_total", "Total number of readPage calls", readPageExecuted); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "read_page_failed_total", "Total number of failed readPage calls", readPageFailed); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "read_page_duration_nanoseconds_total", "Total readPage time in nanoseconds", totalReadPageTime); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "read_page_hits_total", "Total readPage directory hits", readPageHits); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "read_page_misses_total", "Total readPage directory misses", readPageMisses); err != nil {
		return err
	}

	if err := pe.writeHistogram(w, "read_page_duration_seconds", "readPage duration histogram", pe.collector.readPageTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "read_page_duration_seconds", pe.collector.readPageTimings); err != nil {
		return err
	}

	// allocPage metrics
	allocPageExecuted := atomic.LoadUint64(&pe.collector.allocPageExecuted)
	allocPageFailed := atomic.LoadUint64(&pe.collector.allocPageFailed)
	totalAllocPageTime := atomic.LoadUint64(&pe.collector.totalAllocPageTime)

	if err := pe.writeCounter(w, "alloc_page_total", "Total number of allocPage calls", allocPageExecuted); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "alloc_page_failed_total", "Total number of failed allocPage calls", allocPageFailed); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "alloc_page_duration_nanoseconds_total", "Total allocPage time in nanoseconds", totalAllocPageTime); err != nil {
		return err
	}

	if err := pe.writeHistogram(w, "alloc_page_duration_seconds", "allocPage duration histogram", pe.collector.allocPageTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "alloc_page_duration_seconds", pe.collector.allocPageTimings); err != nil {
		return err
	}

	// unpinPage metrics
	unpinPageExecuted := atomic.LoadUint64(&pe.collector.unpinPageExecuted)
	unpinPageFailed := atomic.LoadUint64(&pe.collector.unpinPageFailed)
	totalUnpinPageTime := atomic.LoadUint64(&pe.collector.totalUnpinPageTime)

	if err := pe.writeCounter(w, "unpin_page_total", "Total number of unPinPage calls", unpinPageExecuted); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "unpin_page_failed_total", "Total number of failed unPinPage calls", unpinPageFailed); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "unpin_page_duration_nanoseconds_total", "Total unPinPage time in nanoseconds", totalUnpinPageTime); err != nil {
		return err
	}

	if err := pe.writeHistogram(w, "unpin_page_duration_seconds", "unPinPage duration histogram", pe.collector.unpinPageTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "unpin_page_duration_seconds", pe.collector.unpinPageTimings); err != nil {
		return err
	}

	// flushFile metrics
	flushFileExecuted := atomic.LoadUint64(&pe.collector.flushFileExecuted)
	flushFileFailed := atomic.LoadUint64(&pe.collector.flushFileFailed)
	totalFlushFileTime := atomic.LoadUint64(&pe.collector.totalFlushFileTime)

	if err := pe.writeCounter(w, "flush_file_total", "Total number of flushFile calls", flushFileExecuted); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "flush_file_failed_total", "Total number of failed flushFile calls", flushFileFailed); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "flush_file_duration_nanoseconds_total", "Total flushFile time in nanoseconds", totalFlushFileTime); err != nil {
		return err
	}

	if err := pe.writeHistogram(w, "flush_file_duration_seconds", "flushFile duration histogram", pe.collector.flushFileTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "flush_file_duration_seconds", pe.collector.flushFileTimings); err != nil {
		return err
	}

	// disposePage metrics
	disposePageExecuted := atomic.LoadUint64(&pe.collector.disposePageExecuted)
	disposePageFailed := atomic.LoadUint64(&pe.collector.disposePageFailed)
	totalDisposePageTime := atomic.LoadUint64(&pe.collector.totalDisposePageTime)

	if err := pe.writeCounter(w, "dispose_page_total", "Total number of disposePage calls", disposePageExecuted); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "dispose_page_failed_total", "Total number of failed disposePage calls", disposePageFailed); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "dispose_page_duration_nanoseconds_total", "Total disposePage time in nanoseconds", totalDisposePageTime); err != nil {
		return err
	}

	// Replacement engine metrics
	evictions := atomic.LoadUint64(&pe.collector.evictions)
	bufferExceeded := atomic.LoadUint64(&pe.collector.bufferExceeded)

	if err := pe.writeCounter(w, "evictions_total", "Total number of CLOCK evictions", evictions); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_exceeded_total", "Total number of exhausted replacement sweeps", bufferExceeded); err != nil {
		return err
	}

	// Connection metrics
	activeConnections := atomic.LoadUint64(&pe.collector.activeConnections)
	totalConnections := atomic.LoadUint64(&pe.collector.totalConnections)

	if err := pe.writeGauge(w, "active_connections", "Current number of active connections", float64(activeConnections)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "connections_total", "Total number of connections", totalConnections); err != nil {
		return err
	}

	// Resource tracker metrics (if available)
	if pe.resourceTracker != nil {
		stats := pe.resourceTracker.GetStats()

		// Memory metrics
		if err := pe.writeGauge(w, "memory_heap_bytes", "Heap memory in bytes", float64(stats.HeapInUse)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "memory_stack_bytes", "Stack memory in bytes", float64(stats.StackInUse)); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "memory_allocations_total", "Total memory allocations", stats.AllocBytes); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "memory_objects", "Number of allocated objects", float64(stats.AllocObjects)); err != nil {
			return err
		}

		// Goroutine metrics
		if err := pe.writeGauge(w, "goroutines", "Number of goroutines", float64(stats.NumGoroutines)); err != nil {
			return err
		}

		// I/O metrics
		if err := pe.writeCounter(w, "io_bytes_read_total", "Total bytes read", stats.BytesRead); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_bytes_written_total", "Total bytes written", stats.BytesWritten); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_read_operations_total", "Total read operations", stats.ReadsCompleted); err != nil {
			return err
		}
		if err := pe.writeCounter(w, "io_write_operations_total", "Total write operations", stats.WritesCompleted); err != nil {
			return err
		}

		// GC metrics
		if err := pe.writeCounter(w, "gc_runs_total", "Total garbage collection runs", uint64(stats.GCRuns)); err != nil {
			return err
		}
		if err := pe.writeGauge(w, "gc_pause_nanoseconds", "Last GC pause time in nanoseconds", float64(stats.LastGCTimeNs)); err != nil {
			return err
		}

		// System info
		if err := pe.writeGauge(w, "cpu_count", "Number of CPUs", float64(stats.NumCPU)); err != nil {
			return err
		}
	}

	return nil
}

// writeCounter writes a counter metric
func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeGauge writes a gauge metric
func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeHistogram writes histogram metrics from timing data
func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name

	// Write HELP and TYPE
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	// Get bucket counts
	buckets := th.GetBuckets()

	// Convert to cumulative counts and write buckets
	// Prometheus histogram buckets are cumulative
	var cumulative uint64

	// 0-1ms bucket (le="0.001")
	cumulative += buckets["0-1ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"0.001\"} %d\n", metricName, cumulative); err != nil {
		return err
	}

	// 1-10ms bucket (le="0.01")
	cumulative += buckets["1-10ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"0.01\"} %d\n", metricName, cumulative); err != nil {
		return err
	}

	// 10-100ms bucket (le="0.1")
	cumulative += buckets["10-100ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"0.1\"} %d\n", metricName, cumulative); err != nil {
		return err
	}

	// 100-1000ms bucket (le="1.0")
	cumulative += buckets["100-1000ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"1.0\"} %d\n", metricName, cumulative); err != nil {
		return err
	}

	// >1000ms bucket (le="+Inf")
	cumulative += buckets[">1000ms"]
	if _, err := fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", metricName, cumulative); err != nil {
		return err
	}

	// Write count (approximated from buckets)
	if _, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative); err != nil {
		return err
	}

	return nil
}

// writePercentiles writes percentile metrics as gauges
func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, th *TimingHistogram) error {
	percentiles := th.GetPercentiles()

	// P50
	if err := pe.writeGauge(w, baseName+"_p50",
		fmt.Sprintf("50th percentile of %s", baseName),
		percentiles["p50"].Seconds()); err != nil {
		return err
	}

	// P95
	if err := pe.writeGauge(w, baseName+"_p95",
		fmt.Sprintf("95th percentile of %s", baseName),
		percentiles["p95"].Seconds()); err != nil {
		return err
	}

	// P99
	if err := pe.writeGauge(w, baseName+"_p99",
		fmt.Sprintf("99th percentile of %s", baseName),
		percentiles["p99"].Seconds()); err != nil {
		return err
	}

	return nil
}
