package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mnohosten/pagecache/pkg/server"
)

func main() {
	// Parse command-line flags
	host := flag.String("host", "localhost", "Server host address")
	port := flag.Int("port", 8080, "Server port")
	dataDir := flag.String("data-dir", "./data", "Data directory for database storage (persistent disk storage)")
	bufferSize := flag.Int("buffer-size", 1000, "Buffer pool size in pages (1 page = 4KB, default 1000 = ~4MB)")
	corsOrigin := flag.String("cors-origin", "*", "CORS allowed origin")
	enableTLS := flag.Bool("tls", false, "Enable TLS/SSL")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "Path to TLS private key file")
	enableGraphQL := flag.Bool("graphql", false, "Enable GraphQL API endpoint (/graphql) and GraphiQL playground (/graphiql)")
	enableCompression := flag.Bool("compression", false, "Enable per-file page compression")
	compressionAlgo := flag.String("compression-algo", "zstd", "Compression algorithm: none, snappy, zstd, gzip, zlib")
	enableEncryption := flag.Bool("encryption", false, "Enable per-file page encryption")
	encryptionPassword := flag.String("encryption-password", "", "Password used to derive the encryption key (required with -encryption)")
	flag.Parse()

	// Create server configuration
	config := server.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.DataDir = *dataDir
	config.BufferSize = *bufferSize
	config.AllowedOrigins = []string{*corsOrigin}
	config.EnableTLS = *enableTLS
	config.TLSCertFile = *tlsCert
	config.TLSKeyFile = *tlsKey
	config.EnableGraphQL = *enableGraphQL
	config.EnableCompression = *enableCompression
	config.CompressionAlgo = *compressionAlgo
	config.EnableEncryption = *enableEncryption
	config.EncryptionPassword = *encryptionPassword

	// Create and start server
	srv, err := server.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	// Start server (blocks until shutdown)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
