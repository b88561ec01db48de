package server

import "time"

// Config holds server configuration settings
type Config struct {
	Host           string        // Server host address
	Port           int           // Server port
	DataDir        string        // Directory where managed files are created
	BufferSize     int           // Buffer pool size in pages (1 page = 4KB). Default: 1000 pages (~4MB)
	ReadTimeout    time.Duration // HTTP read timeout
	WriteTimeout   time.Duration // HTTP write timeout
	IdleTimeout    time.Duration // HTTP idle timeout
	MaxRequestSize int64         // Maximum request body size in bytes
	EnableCORS     bool          // Enable CORS middleware
	AllowedOrigins []string      // CORS allowed origins
	AllowedMethods []string      // CORS allowed methods
	AllowedHeaders []string      // CORS allowed headers
	EnableLogging  bool          // Enable request logging
	LogFormat      string        // Log format (text or json)

	// TLS/SSL configuration
	EnableTLS   bool   // Enable TLS/SSL
	TLSCertFile string // Path to TLS certificate file
	TLSKeyFile  string // Path to TLS private key file

	// GraphQL configuration
	EnableGraphQL bool // Enable GraphQL API endpoint

	// Per-file compression, applied to every file opened through the
	// admin API; there is no per-request override.
	EnableCompression bool
	CompressionAlgo   string // "none", "snappy", "zstd", "gzip", "zlib"

	// Per-file encryption, applied the same way.
	EnableEncryption   bool
	EncryptionPassword string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8080,
		DataDir:        "./data",
		BufferSize:     1000, // 1000 pages = ~4MB buffer pool
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		EnableLogging:  true,
		LogFormat:      "text",
		EnableTLS:      false, // TLS disabled by default
		TLSCertFile:    "",
		TLSKeyFile:     "",
		EnableGraphQL:  false, // GraphQL disabled by default (opt-in feature)

		EnableCompression: false,
		CompressionAlgo:   "zstd",
		EnableEncryption:  false,
	}
}
