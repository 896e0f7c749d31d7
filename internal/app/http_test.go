package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/config"
	"pageblocks/api/internal/store"
)

type pingFailStore struct {
	*store.MemoryStore
	err error
}

func (p pingFailStore) Ping(context.Context) error {
	return p.err
}

func doRequest(t *testing.T, server *HTTPServer, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	var response map[string]any
	if rr.Body.Len() > 0 {
		if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, response
}

func newTestServer(t *testing.T, deps Deps) (*HTTPServer, *store.MemoryStore) {
	t.Helper()
	svc, mem := newTestService(t, deps)
	return NewHTTPServer(svc, "*", nil, zerolog.Nop()), mem
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Deps{})
	rr, response := doRequest(t, server, http.MethodGet, "/api/health", nil)
	if rr.Code != http.StatusOK || response["ok"] != true {
		t.Fatalf("unexpected health response %d %v", rr.Code, response)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func TestReadyEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Deps{})
	rr, response := doRequest(t, server, http.MethodGet, "/api/ready", nil)
	if rr.Code != http.StatusOK || response["status"] != "ready" {
		t.Fatalf("unexpected ready response %d %v", rr.Code, response)
	}

	failing := New(config.Config{}, pingFailStore{MemoryStore: store.NewMemoryStore(), err: errors.New("connection refused")}, Deps{Logger: zerolog.Nop()})
	rr, response = doRequest(t, NewHTTPServer(failing, "*", nil, zerolog.Nop()), http.MethodGet, "/api/ready", nil)
	if rr.Code != http.StatusServiceUnavailable || response["status"] != "not_ready" {
		t.Fatalf("unexpected not-ready response %d %v", rr.Code, response)
	}
	checks := response["checks"].(map[string]any)["store"].(map[string]any)
	if checks["error"] != "connection refused" {
		t.Fatalf("unexpected checks %v", checks)
	}
}

func TestPromoteEndpoint(t *testing.T) {
	server, mem := newTestServer(t, Deps{})

	rr, response := doRequest(t, server, http.MethodPost, "/api/documents/doc1/promote", map[string]any{
		"field": "content",
		"key":   "a",
		"value": helloBlock(),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", rr.Code, response)
	}
	newID, _ := response["newId"].(string)
	if newID == "" || response["title"] != "Hello" {
		t.Fatalf("unexpected response %v", response)
	}
	patch := response["patch"].(map[string]any)
	if patch["id"] != "doc1" {
		t.Fatalf("unexpected patch %v", patch)
	}

	shareable, err := mem.GetDocument(context.Background(), newID)
	if err != nil || shareable.Type() != "reusablePageBlock" {
		t.Fatalf("shareable not stored: %v", err)
	}

	rr, response = doRequest(t, server, http.MethodGet, "/api/documents/"+newID+"/references", nil)
	if rr.Code != http.StatusOK || response["count"] != float64(1) || response["known"] != true {
		t.Fatalf("unexpected references response %d %v", rr.Code, response)
	}

	rr, response = doRequest(t, server, http.MethodGet, "/api/documents/doc1/promote/a", nil)
	if rr.Code != http.StatusOK || response["status"] != "succeeded" {
		t.Fatalf("unexpected state %v", response)
	}
}

func TestPromoteEndpointErrors(t *testing.T) {
	server, _ := newTestServer(t, Deps{})

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing source", "/api/documents/ghost/promote", map[string]any{"field": "content", "value": helloBlock()}, http.StatusNotFound, "NOT_FOUND"},
		{"missing value", "/api/documents/doc1/promote", map[string]any{"field": "content", "key": "a"}, http.StatusNotFound, "BLOCK_NOT_FOUND"},
		{"key mismatch", "/api/documents/doc1/promote", map[string]any{"field": "content", "key": "z", "value": helloBlock()}, http.StatusConflict, "CONFLICT"},
		{"already reference", "/api/documents/doc1/promote", map[string]any{"field": "content", "value": map[string]any{"_key": "a", "_type": "reference", "_ref": "x"}}, http.StatusConflict, "CONFLICT"},
		{"key not in document", "/api/documents/doc1/promote", map[string]any{"field": "content", "value": map[string]any{"_key": "zzz", "_type": "textBlock"}}, http.StatusNotFound, "BLOCK_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, response := doRequest(t, server, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.status || response["code"] != tt.code {
				t.Fatalf("expected %d %s, got %d %v", tt.status, tt.code, rr.Code, response)
			}
			details := response["details"].(map[string]any)
			notification := details["notification"].(map[string]any)
			if notification["title"] != "Block could not be transformed" {
				t.Fatalf("unexpected notification %v", notification)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/doc1/promote", bytes.NewBufferString("{nope"))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad JSON, got %d", rr.Code)
	}
}

func TestDecorationsEndpoint(t *testing.T) {
	server, _ := newTestServer(t, Deps{})
	rr, response := doRequest(t, server, http.MethodGet, "/api/documents/doc1/decorations", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	blocks := response["blocks"].([]any)
	first := blocks[0].(map[string]any)["decoration"].(map[string]any)
	if first["kind"] != "banner" || first["button"] != "Make Reusable" {
		t.Fatalf("unexpected decoration %v", first)
	}

	rr, _ = doRequest(t, server, http.MethodGet, "/api/documents/ghost/decorations", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	server, _ := newTestServer(t, Deps{})
	rr, response := doRequest(t, server, http.MethodGet, "/api/documents/doc1/history", nil)
	if rr.Code != http.StatusServiceUnavailable || response["code"] != "HISTORY_UNAVAILABLE" {
		t.Fatalf("expected history unavailable, got %d %v", rr.Code, response)
	}

	withHistory, _ := newTestServer(t, Deps{History: &fakeHistory{}})
	rr, response = doRequest(t, withHistory, http.MethodGet, "/api/documents/doc1/history?limit=5", nil)
	if rr.Code != http.StatusOK || len(response["commits"].([]any)) != 1 {
		t.Fatalf("unexpected history %d %v", rr.Code, response)
	}
	rr, response = doRequest(t, withHistory, http.MethodGet, "/api/documents/missing/history", nil)
	if rr.Code != http.StatusNotFound || response["code"] != "NO_HISTORY" {
		t.Fatalf("expected NO_HISTORY, got %d %v", rr.Code, response)
	}
	rr, response = doRequest(t, withHistory, http.MethodGet, "/api/documents/doc1/history/abc1234", nil)
	if rr.Code != http.StatusOK || response["title"] != "At abc1234" {
		t.Fatalf("unexpected revision %d %v", rr.Code, response)
	}
}

func TestSearchExportAndListenEndpoints(t *testing.T) {
	server, mem := newTestServer(t, Deps{})
	if _, err := mem.Create(context.Background(), store.Document{"_type": "reusablePageBlock", "title": "Pricing table", "content": []any{helloBlock()}}); err != nil {
		t.Fatal(err)
	}

	rr, response := doRequest(t, server, http.MethodGet, "/api/shareables?q=pricing", nil)
	if rr.Code != http.StatusOK || response["total"] != float64(1) || response["engine"] != "store" {
		t.Fatalf("unexpected search %d %v", rr.Code, response)
	}

	rr, response = doRequest(t, server, http.MethodPost, "/api/export", map[string]any{"type": "page"})
	if rr.Code != http.StatusServiceUnavailable || response["code"] != "EXPORT_UNAVAILABLE" {
		t.Fatalf("expected export unavailable, got %d %v", rr.Code, response)
	}

	rr, response = doRequest(t, server, http.MethodGet, "/api/listen", nil)
	if rr.Code != http.StatusServiceUnavailable || response["code"] != "LISTEN_UNAVAILABLE" {
		t.Fatalf("expected listen unavailable, got %d %v", rr.Code, response)
	}

	rr, _ = doRequest(t, server, http.MethodGet, "/api/unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
