package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// setupTestServer creates a server backed by a temporary data directory.
func setupTestServer(t *testing.T) (*Server, func()) {
	tmpDir, err := os.MkdirTemp("", "pagecache-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	config := &Config{
		Host:           "localhost",
		Port:           0,
		DataDir:        tmpDir,
		BufferSize:     16,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  false,
		EnableGraphQL:  true,
	}

	srv, err := New(config)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	cleanup := func() {
		srv.bpm.Close()
		os.RemoveAll(tmpDir)
	}

	return srv, cleanup
}

func makeRequest(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	var response map[string]interface{}
	if rr.Body.Len() > 0 {
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}

	return rr, response
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, resp := makeRequest(t, srv, http.MethodGet, "/_health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ok, exists := resp["ok"].(bool); !exists || !ok {
		t.Errorf("expected ok=true, got %v", resp["ok"])
	}

	result := resp["result"].(map[string]interface{})
	if status := result["status"]; status != "healthy" {
		t.Errorf("expected status=healthy, got %v", status)
	}
	if _, exists := result["uptime"]; !exists {
		t.Error("expected uptime field")
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/files/a.db", nil)
	makeRequest(t, srv, http.MethodPost, "/files/a.db/pages", nil)

	rr, resp := makeRequest(t, srv, http.MethodGet, "/_stats", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	result := resp["result"].(map[string]interface{})
	if int(result["pool_size"].(float64)) != 16 {
		t.Errorf("expected pool_size=16, got %v", result["pool_size"])
	}
	if int(result["valid_frames"].(float64)) != 1 {
		t.Errorf("expected valid_frames=1, got %v", result["valid_frames"])
	}
	if int(result["open_files"].(float64)) != 1 {
		t.Errorf("expected open_files=1, got %v", result["open_files"])
	}
}

func TestFramesEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/files/a.db", nil)
	makeRequest(t, srv, http.MethodPost, "/files/a.db/pages", nil)

	rr, resp := makeRequest(t, srv, http.MethodGet, "/_frames", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	result := resp["result"].(map[string]interface{})
	frames := result["frames"].([]interface{})
	if len(frames) != 16 {
		t.Errorf("expected 16 frame descriptors, got %d", len(frames))
	}
}

func TestFileLifecycle(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, resp := makeRequest(t, srv, http.MethodPost, "/files/a.db", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("CreateFile: expected 200, got %d: %v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodGet, "/files/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ListFiles: expected 200, got %d", rr.Code)
	}
	if int(resp["count"].(float64)) != 1 {
		t.Errorf("expected 1 file listed, got %v", resp["count"])
	}

	rr, resp = makeRequest(t, srv, http.MethodDelete, "/files/a.db", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("DeleteFile: expected 200, got %d: %v", rr.Code, resp)
	}

	rr, _ = makeRequest(t, srv, http.MethodDelete, "/files/a.db", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting an already-removed file, got %d", rr.Code)
	}
}

func TestPageLifecycle(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/files/pages.db", nil)

	rr, resp := makeRequest(t, srv, http.MethodPost, "/files/pages.db/pages", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("AllocPage: expected 200, got %d: %v", rr.Code, resp)
	}
	result := resp["result"].(map[string]interface{})
	pageNo := int(result["page_no"].(float64))
	pageNoStr := itoa(pageNo)

	writeBody := map[string]interface{}{"data": encodeBase64([]byte("hello world"))}
	rr, resp = makeRequest(t, srv, http.MethodPut, "/files/pages.db/pages/"+pageNoStr, writeBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("WritePage: expected 200, got %d: %v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodGet, "/files/pages.db/pages/"+pageNoStr, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("ReadPage: expected 200, got %d: %v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodPost, "/files/pages.db/flush", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("FlushFile: expected 200, got %d: %v", rr.Code, resp)
	}

	rr, resp = makeRequest(t, srv, http.MethodDelete, "/files/pages.db/pages/"+pageNoStr, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("DeletePage: expected 200, got %d: %v", rr.Code, resp)
	}
}

func TestReadPageOnUnregisteredFile(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, _ := makeRequest(t, srv, http.MethodGet, "/files/missing.db/pages/0", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/_health", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 for OPTIONS preflight, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS origin header *, got %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestBadJSONRequest(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/files/bad.db", nil)
	allocRR, allocResp := makeRequest(t, srv, http.MethodPost, "/files/bad.db/pages", nil)
	if allocRR.Code != http.StatusOK {
		t.Fatalf("AllocPage setup failed: %d", allocRR.Code)
	}
	pageNo := int(allocResp["result"].(map[string]interface{})["page_no"].(float64))

	req := httptest.NewRequest(http.MethodPut, "/files/bad.db/pages/"+itoa(pageNo), strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	srv.config.MaxRequestSize = 16

	makeRequest(t, srv, http.MethodPost, "/files/limited.db", nil)
	allocRR, allocResp := makeRequest(t, srv, http.MethodPost, "/files/limited.db/pages", nil)
	if allocRR.Code != http.StatusOK {
		t.Fatalf("AllocPage setup failed: %d", allocRR.Code)
	}
	pageNo := int(allocResp["result"].(map[string]interface{})["page_no"].(float64))

	bigPayload := map[string]interface{}{"data": encodeBase64(bytes.Repeat([]byte("x"), 1024))}
	rr, _ := makeRequest(t, srv, http.MethodPut, "/files/limited.db/pages/"+itoa(pageNo), bigPayload)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized request, got %d", rr.Code)
	}
}

func TestPrometheusMetricsEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/files/m.db", nil)
	makeRequest(t, srv, http.MethodPost, "/files/m.db/pages", nil)

	req := httptest.NewRequest(http.MethodGet, "/_metrics", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if !strings.Contains(body, "pagecache_alloc_page_total") {
		t.Errorf("expected pagecache_alloc_page_total metric in output, got: %s", body)
	}
	if !strings.Contains(body, "pagecache_uptime_seconds") {
		t.Errorf("expected pagecache_uptime_seconds metric in output")
	}
}

func TestGraphQLEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	makeRequest(t, srv, http.MethodPost, "/files/g.db", nil)
	makeRequest(t, srv, http.MethodPost, "/files/g.db/pages", nil)

	body := map[string]interface{}{"query": "query { stats { poolSize validFrames } }"}
	rr, resp := makeRequest(t, srv, http.MethodPost, "/graphql", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rr.Code, resp)
	}

	data := resp["data"].(map[string]interface{})
	stats := data["stats"].(map[string]interface{})
	if int(stats["poolSize"].(float64)) != 16 {
		t.Errorf("expected poolSize=16, got %v", stats["poolSize"])
	}
}

func TestGraphiQLEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/graphiql", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "localhost" {
		t.Errorf("expected Host=localhost, got %s", config.Host)
	}
	if config.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", config.Port)
	}
	if config.BufferSize != 1000 {
		t.Errorf("expected BufferSize=1000, got %d", config.BufferSize)
	}
	if !config.EnableCORS {
		t.Error("expected EnableCORS=true")
	}
	if config.EnableTLS {
		t.Error("expected EnableTLS=false by default")
	}
	if config.EnableGraphQL {
		t.Error("expected EnableGraphQL=false by default")
	}
	if config.CompressionAlgo != "zstd" {
		t.Errorf("expected default CompressionAlgo=zstd, got %s", config.CompressionAlgo)
	}
}

func TestNewWithInvalidTLSConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pagecache-test-tls-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	config := DefaultConfig()
	config.DataDir = tmpDir
	config.EnableTLS = true

	_, err = New(config)
	if err == nil {
		t.Error("expected error when TLS is enabled without cert/key files")
	}
}

func TestGetBufferPoolManager(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if srv.GetBufferPoolManager() == nil {
		t.Error("expected a non-nil buffer pool manager")
	}
	if srv.GetBufferPoolManager().Size() != 16 {
		t.Errorf("expected pool size 16, got %d", srv.GetBufferPoolManager().Size())
	}
}

func TestGetMetricsCollectorAndResourceTracker(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if srv.GetMetricsCollector() == nil {
		t.Error("expected a non-nil metrics collector")
	}
	if srv.GetResourceTracker() == nil {
		t.Error("expected a non-nil resource tracker")
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]string{"hello": "world"})

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusBadRequest, "BadRequest", "bad input")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["ok"] != false {
		t.Error("expected ok=false")
	}
	if resp["error"] != "BadRequest" {
		t.Errorf("expected error=BadRequest, got %v", resp["error"])
	}
}

func TestWriteSuccess(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteSuccess(rr, map[string]string{"key": "value"})

	var resp map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp["ok"] != true {
		t.Error("expected ok=true")
	}
}

func TestWriteSuccessWithCount(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteSuccessWithCount(rr, []string{"a", "b"}, 2)

	var resp map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&resp)
	if int(resp["count"].(float64)) != 2 {
		t.Errorf("expected count=2, got %v", resp["count"])
	}
}

func TestShutdown(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	if err := srv.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v, expected nil", err)
	}
}

func TestMiddlewareSetup(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/_health", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id response header carrying the middleware.RequestID id")
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
