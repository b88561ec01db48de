package graphql

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/pagecache/pkg/storage"
)

func resolveParams(args map[string]interface{}) graphql.ResolveParams {
	if args == nil {
		args = map[string]interface{}{}
	}
	return graphql.ResolveParams{Args: args}
}

func TestSchemaBuilds(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)

	schema, err := Schema(bpm)
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if schema.QueryType() == nil {
		t.Fatal("expected a query type")
	}
}

func TestResolverStats(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	f := storage.NewMemFile("test.db")

	if _, _, err := bpm.AllocPage(f); err != nil {
		t.Fatalf("AllocPage: %v", err)
	}

	r := NewResolver(bpm)
	result, err := r.Stats(resolveParams(nil))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	stats := result.(map[string]interface{})
	if stats["poolSize"] != 4 {
		t.Errorf("expected poolSize=4, got %v", stats["poolSize"])
	}
	if stats["validFrames"] != 1 {
		t.Errorf("expected validFrames=1, got %v", stats["validFrames"])
	}
}

func TestResolverFrames(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	f := storage.NewMemFile("test.db")

	pageNo, _, err := bpm.AllocPage(f)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if err := bpm.UnpinPage(f, pageNo, true); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	r := NewResolver(bpm)
	result, err := r.Frames(resolveParams(nil))
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}

	frames := result.([]map[string]interface{})
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}

	foundValid := 0
	for _, fr := range frames {
		if fr["valid"] == true {
			foundValid++
			if fr["dirty"] != true {
				t.Errorf("expected the allocated frame to be dirty, got %v", fr["dirty"])
			}
		}
	}
	if foundValid != 1 {
		t.Errorf("expected exactly 1 valid frame, got %d", foundValid)
	}
}

func TestResolverFrameOutOfRange(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	r := NewResolver(bpm)

	_, err := r.Frame(resolveParams(map[string]interface{}{"frameNo": 99}))
	if err == nil {
		t.Fatal("expected an out-of-range error")
	}
}

func TestResolverFrameMissingArg(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	r := NewResolver(bpm)

	_, err := r.Frame(resolveParams(nil))
	if err == nil {
		t.Fatal("expected an error when frameNo is missing")
	}
}

func TestHandlerServeHTTP(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	f := storage.NewMemFile("test.db")
	if _, _, err := bpm.AllocPage(f); err != nil {
		t.Fatalf("AllocPage: %v", err)
	}

	h, err := NewHandler(bpm)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	reqBody, _ := json.Marshal(GraphQLRequest{Query: "query { stats { poolSize validFrames } }"})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(reqBody))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Data struct {
			Stats struct {
				PoolSize    int `json:"poolSize"`
				ValidFrames int `json:"validFrames"`
			} `json:"stats"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Errors) != 0 {
		t.Fatalf("unexpected GraphQL errors: %v", resp.Errors)
	}
	if resp.Data.Stats.PoolSize != 4 {
		t.Errorf("expected poolSize=4, got %d", resp.Data.Stats.PoolSize)
	}
	if resp.Data.Stats.ValidFrames != 1 {
		t.Errorf("expected validFrames=1, got %d", resp.Data.Stats.ValidFrames)
	}
}

func TestHandlerRejectsGet(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	h, err := NewHandler(bpm)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

func TestHandlerInvalidBody(t *testing.T) {
	bpm := storage.NewBufferPoolManager(4)
	h, err := NewHandler(bpm)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestGraphiQLHandlerServesHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/graphiql", nil)
	w := httptest.NewRecorder()

	GraphiQLHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html" {
		t.Errorf("expected text/html, got %q", ct)
	}
}
