package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mnohosten/pagecache/pkg/compression"
	"github.com/mnohosten/pagecache/pkg/encryption"
	"github.com/mnohosten/pagecache/pkg/metrics"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// Handlers holds the buffer pool manager and the registry of files it is
// managing pages for, and provides the HTTP handlers for the admin/ops
// surface built on top of it.
type Handlers struct {
	bpm     *storage.BufferPoolManager
	dataDir string

	compressionCfg *compression.Config
	encryptionCfg  *encryption.Config

	mu    sync.RWMutex
	files map[string]storage.File

	metricsCollector *metrics.MetricsCollector
	slowLog          *metrics.SlowOperationLog
	profiler         *metrics.ProfilerHelper
	resourceTracker  *metrics.ResourceTracker
}

// Options configures a Handlers instance.
type Options struct {
	DataDir string

	EnableCompression bool
	CompressionAlgo   string

	EnableEncryption   bool
	EncryptionPassword string

	MetricsCollector *metrics.MetricsCollector
	SlowLog          *metrics.SlowOperationLog
	Profiler         *metrics.ProfilerHelper
	ResourceTracker  *metrics.ResourceTracker
}

// New creates a new Handlers instance around bpm.
func New(bpm *storage.BufferPoolManager, opts Options) (*Handlers, error) {
	h := &Handlers{
		bpm:              bpm,
		dataDir:          opts.DataDir,
		files:            make(map[string]storage.File),
		metricsCollector: opts.MetricsCollector,
		slowLog:          opts.SlowLog,
		profiler:         opts.Profiler,
		resourceTracker:  opts.ResourceTracker,
	}

	if opts.EnableCompression {
		h.compressionCfg = &compression.Config{
			Algorithm: compression.ParseAlgorithm(opts.CompressionAlgo),
			Level:     3,
		}
	}

	if opts.EnableEncryption {
		cfg, err := encryption.NewConfigFromPassword(opts.EncryptionPassword, encryption.AlgorithmAES256GCM)
		if err != nil {
			return nil, fmt.Errorf("configure encryption: %w", err)
		}
		h.encryptionCfg = cfg
	}

	return h, nil
}

// openFile opens or creates the backing file for name under the data
// directory, wraps it with encryption if configured, and registers it.
// Reopening an already-registered name returns the existing File.
func (h *Handlers) openFile(name string) (storage.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if f, ok := h.files[name]; ok {
		return f, nil
	}

	path := filepath.Join(h.dataDir, name)

	var f storage.File
	if h.compressionCfg != nil {
		cf, err := compression.NewCompressedDiskManager(path, h.compressionCfg)
		if err != nil {
			return nil, fmt.Errorf("open compressed file %q: %w", name, err)
		}
		f = cf
	} else {
		dm, err := storage.NewDiskManager(path)
		if err != nil {
			return nil, fmt.Errorf("open file %q: %w", name, err)
		}
		f = dm
	}

	if h.encryptionCfg != nil {
		ef, err := encryption.NewEncryptedFile(f, h.encryptionCfg)
		if err != nil {
			return nil, fmt.Errorf("open encrypted file %q: %w", name, err)
		}
		f = ef
	}

	h.files[name] = f
	return f, nil
}

// getFile looks up an already-opened file by name.
func (h *Handlers) getFile(name string) (storage.File, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	f, ok := h.files[name]
	if !ok {
		return nil, &FileNotFoundError{Name: name}
	}
	return f, nil
}

// closeFile flushes, closes, and unregisters a file, then removes its
// backing data file from disk.
func (h *Handlers) closeFile(name string) error {
	h.mu.Lock()
	f, ok := h.files[name]
	if !ok {
		h.mu.Unlock()
		return &FileNotFoundError{Name: name}
	}
	delete(h.files, name)
	h.mu.Unlock()

	if err := h.bpm.FlushFile(f); err != nil {
		return fmt.Errorf("flush %q before removal: %w", name, err)
	}

	if c, ok := f.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close %q: %w", name, err)
		}
	}

	return os.Remove(filepath.Join(h.dataDir, name))
}

// listFiles returns the names of every currently open file in no
// particular order (neither sorted nor in registration order); callers
// that need a stable order should sort the result themselves.
func (h *Handlers) listFiles() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.files))
	for name := range h.files {
		names = append(names, name)
	}
	return names
}

// parseJSONBody parses JSON request body into target interface.
func parseJSONBody(r *http.Request, target interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &BadRequestError{Message: "failed to read request body"}
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return &BadRequestError{Message: "request body is empty"}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return &BadRequestError{Message: "invalid JSON: " + err.Error()}
	}

	return nil
}

// recordOperation updates the metrics collector and slow-operation log for
// a completed buffer pool operation. kind is one of "read_page",
// "alloc_page", "unpin_page", "flush_file", "dispose_page".
func (h *Handlers) recordOperation(kind string, file string, pageNo storage.PageID, start time.Time, success bool, extra ...func(*metrics.SlowOperationEntry)) {
	duration := time.Since(start)

	if h.metricsCollector != nil {
		switch kind {
		case "read_page":
			h.metricsCollector.RecordReadPage(duration, success, false)
		case "alloc_page":
			h.metricsCollector.RecordAllocPage(duration, success)
		case "unpin_page":
			h.metricsCollector.RecordUnpinPage(duration, success)
		case "flush_file":
			h.metricsCollector.RecordFlushFile(duration, success)
		case "dispose_page":
			h.metricsCollector.RecordDisposePage(duration, success)
		}
	}

	if h.slowLog != nil {
		entry := metrics.SlowOperationEntry{
			Duration:  duration,
			Operation: kind,
			File:      file,
			PageNo:    int(pageNo),
		}
		if !success {
			entry.Error = "operation failed"
		}
		for _, fn := range extra {
			fn(&entry)
		}
		h.slowLog.LogOperation(entry)
	}
}

// recordPageRead notes n bytes read from a page with the resource tracker,
// if one is configured.
func (h *Handlers) recordPageRead(n int) {
	if h.resourceTracker != nil {
		h.resourceTracker.RecordRead(uint64(n))
	}
}

// recordPageWrite notes n bytes written to a page with the resource
// tracker, if one is configured.
func (h *Handlers) recordPageWrite(n int) {
	if h.resourceTracker != nil {
		h.resourceTracker.RecordWrite(uint64(n))
	}
}

// Error types for consistent error handling

type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

type FileNotFoundError struct {
	Name string
}

func (e *FileNotFoundError) Error() string {
	return "file not registered: " + e.Name
}

type FileExistsError struct {
	Name string
}

func (e *FileExistsError) Error() string {
	return "file already registered: " + e.Name
}

type PageNotFoundError struct {
	File   string
	PageNo storage.PageID
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("page %d of %q not found", e.PageNo, e.File)
}

type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return e.Message
}

// writeError writes an error response with appropriate HTTP status code.
func writeError(w http.ResponseWriter, err error) {
	var statusCode int
	var errorType string
	var message string

	switch e := err.(type) {
	case *BadRequestError:
		statusCode = http.StatusBadRequest
		errorType = "BadRequest"
		message = e.Message
	case *FileNotFoundError:
		statusCode = http.StatusNotFound
		errorType = "FileNotFound"
		message = e.Error()
	case *FileExistsError:
		statusCode = http.StatusConflict
		errorType = "FileExists"
		message = e.Error()
	case *PageNotFoundError:
		statusCode = http.StatusNotFound
		errorType = "PageNotFound"
		message = e.Error()
	case *storage.PagePinnedError:
		statusCode = http.StatusConflict
		errorType = "PagePinned"
		message = e.Error()
	case *storage.PageNotPinnedError:
		statusCode = http.StatusConflict
		errorType = "PageNotPinned"
		message = e.Error()
	case *storage.BufferExceededError:
		statusCode = http.StatusServiceUnavailable
		errorType = "BufferExceeded"
		message = e.Error()
	case *InternalError:
		statusCode = http.StatusInternalServerError
		errorType = "InternalError"
		message = e.Message
	default:
		statusCode = http.StatusInternalServerError
		errorType = "InternalError"
		message = err.Error()
	}

	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// writeSuccessWithCount writes a success response with count.
func writeSuccessWithCount(w http.ResponseWriter, result interface{}, count int) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
		"count":  count,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
