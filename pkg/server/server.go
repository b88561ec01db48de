package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gql "github.com/mnohosten/pagecache/pkg/graphql"
	"github.com/mnohosten/pagecache/pkg/metrics"
	"github.com/mnohosten/pagecache/pkg/server/handlers"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// Server is the admin/ops HTTP surface in front of a BufferPoolManager: it
// exposes the pool's own public operations (open/close a file, alloc/read/
// write/dispose a page, flush a file) plus observability endpoints built on
// top of the pool's debug dump.
type Server struct {
	config *Config
	bpm    *storage.BufferPoolManager

	router  *chi.Mux
	httpSrv *http.Server

	startTime time.Time

	metricsCollector *metrics.MetricsCollector
	resourceTracker  *metrics.ResourceTracker
	promExporter     *metrics.PrometheusExporter
	slowLog          *metrics.SlowOperationLog
	profiler         *metrics.OperationProfiler

	frameWatch *handlers.FrameWatchManager
}

// New creates a new HTTP server instance around a freshly constructed
// buffer pool manager sized per config.BufferSize.
func New(config *Config) (*Server, error) {
	if config.EnableTLS {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.TLSCertFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS certificate file not found: %s", config.TLSCertFile)
		}
		if _, err := os.Stat(config.TLSKeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("TLS key file not found: %s", config.TLSKeyFile)
		}
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	bpm := storage.NewBufferPoolManager(config.BufferSize)

	metricsCollector := metrics.NewMetricsCollector()
	resourceTracker := metrics.NewResourceTracker(nil)
	promExporter := metrics.NewPrometheusExporter(metricsCollector, resourceTracker)

	slowLog, err := metrics.NewSlowOperationLog(nil)
	if err != nil {
		return nil, fmt.Errorf("create slow operation log: %w", err)
	}
	profiler := metrics.NewOperationProfiler(true)

	srv := &Server{
		config:           config,
		bpm:              bpm,
		router:           chi.NewRouter(),
		startTime:        time.Now(),
		metricsCollector: metricsCollector,
		resourceTracker:  resourceTracker,
		promExporter:     promExporter,
		slowLog:          slowLog,
		profiler:         profiler,
	}

	srv.setupMiddleware()

	h, err := handlers.New(bpm, handlers.Options{
		DataDir:            config.DataDir,
		EnableCompression:  config.EnableCompression,
		CompressionAlgo:    config.CompressionAlgo,
		EnableEncryption:   config.EnableEncryption,
		EncryptionPassword: config.EncryptionPassword,
		MetricsCollector:   metricsCollector,
		SlowLog:            slowLog,
		Profiler:           metrics.NewProfilerHelper(profiler),
		ResourceTracker:    resourceTracker,
	})
	if err != nil {
		return nil, fmt.Errorf("create handlers: %w", err)
	}

	srv.setupRoutes(h)

	if config.EnableGraphQL {
		if err := srv.setupGraphQLRoutes(); err != nil {
			return nil, fmt.Errorf("failed to setup GraphQL routes: %w", err)
		}
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv, nil
}

// setupMiddleware configures the HTTP middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	// Echo the request id chosen by middleware.RequestID back to the client.
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Request-Id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(w, r)
		})
	})
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

// setupRoutes configures the admin/ops HTTP routes built on top of h.
func (s *Server) setupRoutes(h *handlers.Handlers) {
	s.router.Get("/_health", s.jsonContentType(h.Health(s.startTime)))
	s.router.Get("/_stats", s.jsonContentType(h.GetStats))
	s.router.Get("/_frames", s.jsonContentType(h.DumpFrames))
	s.router.Get("/_metrics", s.handlePrometheusMetrics)

	s.frameWatch = handlers.SetupWebSocketRoutes(s.router, h, s.bpm, time.Second)

	s.router.Route("/files", func(r chi.Router) {
		r.Get("/", s.jsonContentType(h.ListFiles))
		r.Post("/{file}", s.jsonContentType(h.CreateFile))
		r.Delete("/{file}", s.jsonContentType(h.DeleteFile))

		r.Post("/{file}/flush", s.jsonContentType(h.FlushFile))

		r.Post("/{file}/pages", s.jsonContentType(h.AllocPage))
		r.Get("/{file}/pages/{pageNo}", s.jsonContentType(h.ReadPage))
		r.Put("/{file}/pages/{pageNo}", s.jsonContentType(h.WritePage))
		r.Delete("/{file}/pages/{pageNo}", s.jsonContentType(h.DeletePage))
	})

	if s.config.EnableGraphQL {
		s.router.Get("/graphiql", gql.GraphiQLHandler())
	}
}

// setupGraphQLRoutes mounts the read-only GraphQL API over the buffer
// pool's own frame table.
func (s *Server) setupGraphQLRoutes() error {
	graphqlHandler, err := gql.NewHandler(s.bpm)
	if err != nil {
		return fmt.Errorf("failed to create GraphQL handler: %w", err)
	}

	s.router.Handle("/graphql", graphqlHandler)

	fmt.Println("GraphQL API enabled at /graphql (playground at /graphiql)")
	return nil
}

// jsonContentType wraps a handler to set the JSON content type before it
// runs.
func (s *Server) jsonContentType(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

// corsMiddleware handles CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestSizeLimitMiddleware caps request body size.
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// handlePrometheusMetrics serves the Prometheus text-format metrics
// endpoint.
func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	if err := s.promExporter.WriteMetrics(w); err != nil {
		http.Error(w, fmt.Sprintf("Error writing metrics: %v", err), http.StatusInternalServerError)
		return
	}
}

// Start runs the HTTP server until an error occurs or a shutdown signal is
// received.
func (s *Server) Start() error {
	protocol := "http"
	if s.config.EnableTLS {
		protocol = "https"
		fmt.Printf("TLS/SSL enabled, certificate: %s\n", s.config.TLSCertFile)
	}
	fmt.Printf("pagecache server starting on %s://%s:%d\n", protocol, s.config.Host, s.config.Port)
	fmt.Printf("Data directory: %s\n", s.config.DataDir)
	fmt.Printf("Buffer pool size: %d pages\n", s.config.BufferSize)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpSrv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		return s.Shutdown()
	}
}

// GetBufferPoolManager returns the server's buffer pool manager.
func (s *Server) GetBufferPoolManager() *storage.BufferPoolManager {
	return s.bpm
}

// GetMetricsCollector returns the metrics collector.
func (s *Server) GetMetricsCollector() *metrics.MetricsCollector {
	return s.metricsCollector
}

// GetResourceTracker returns the resource tracker.
func (s *Server) GetResourceTracker() *metrics.ResourceTracker {
	return s.resourceTracker
}

// Shutdown gracefully shuts down the server: closes the HTTP listener,
// every active frame-watch WebSocket connection, and then flushes every
// dirty frame of every file the buffer pool manager still has resident.
func (s *Server) Shutdown() error {
	fmt.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		fmt.Printf("Server shutdown error: %v\n", err)
	}

	if s.frameWatch != nil {
		if err := s.frameWatch.Close(); err != nil {
			fmt.Printf("Warning: error closing frame watch manager: %v\n", err)
		}
	}

	if s.resourceTracker != nil {
		s.resourceTracker.Disable()
	}

	if err := s.bpm.Close(); err != nil {
		fmt.Printf("Buffer pool close error: %v\n", err)
		return err
	}

	fmt.Println("Server shutdown complete")
	return nil
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("Error encoding JSON response: %v\n", err)
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	}
	WriteJSON(w, statusCode, response)
}

// WriteSuccess writes a success response.
func WriteSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
	}
	WriteJSON(w, http.StatusOK, response)
}

// WriteSuccessWithCount writes a success response with a count field.
func WriteSuccessWithCount(w http.ResponseWriter, result interface{}, count int) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
		"count":  count,
	}
	WriteJSON(w, http.StatusOK, response)
}
