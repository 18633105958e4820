package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/memorytest"
	"github.com/becomeliminal/nim-memory/server"
)

type staticSource struct {
	store memory.Store
	err   error
}

func (s staticSource) Get() (memory.Store, error) { return s.store, s.err }

func newServer(t *testing.T, src server.StoreSource) *httptest.Server {
	t.Helper()
	return newServerConfig(t, server.Config{Stores: src, AppName: "nim-memory", AppVersion: "test"})
}

func newServerConfig(t *testing.T, cfg server.Config) *httptest.Server {
	t.Helper()
	srv, err := server.New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	ts := newServer(t, staticSource{store: memorytest.New()})

	status, body := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nim-memory", body["service"])
}

func TestMemoryRoutes(t *testing.T) {
	store := memorytest.New()
	ts := newServer(t, staticSource{store: store})

	status, body := do(t, http.MethodPost, ts.URL+"/memory/add",
		`{"content":"User prefers dark mode","tags":["user_42"]}`)
	require.Equal(t, http.StatusOK, status)
	id := body["id"].(string)
	assert.Contains(t, body["message"], "User prefers dark mode")

	status, body = do(t, http.MethodPost, ts.URL+"/memory/search",
		`{"query":"dark mode","tags":["user_42"],"limit":5}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])
	results := body["results"].([]any)
	assert.Equal(t, "User prefers dark mode", results[0].(map[string]any)["content"])

	status, body = do(t, http.MethodPost, ts.URL+"/memory/list", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = do(t, http.MethodDelete, ts.URL+"/memory/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["deleted"])

	status, body = do(t, http.MethodDelete, ts.URL+"/memory/"+id, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["deleted"])
}

func TestSearch_EmptyResult(t *testing.T) {
	ts := newServer(t, staticSource{store: memorytest.New()})

	status, body := do(t, http.MethodPost, ts.URL+"/memory/search",
		`{"query":"anything","tags":["nonexistent_tag"]}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"results": []any{}, "count": float64(0)}, body)
}

func TestErrorMapping(t *testing.T) {
	failing := memorytest.New()
	failing.Err = errors.New("index offline")

	tests := []struct {
		name   string
		src    staticSource
		path   string
		body   string
		status int
		detail string
	}{
		{"malformed json", staticSource{store: memorytest.New()}, "/memory/add", `{"content":`, http.StatusUnprocessableEntity, "invalid request body"},
		{"empty content", staticSource{store: memorytest.New()}, "/memory/add", `{"content":"  "}`, http.StatusUnprocessableEntity, "content"},
		{"negative limit", staticSource{store: memorytest.New()}, "/memory/search", `{"query":"q","limit":-2}`, http.StatusUnprocessableEntity, "limit"},
		{"missing credential", staticSource{err: &memory.ConfigError{Setting: "SUPERMEMORY_API_KEY"}}, "/memory/search", `{"query":"q"}`, http.StatusServiceUnavailable, "SUPERMEMORY_API_KEY"},
		{"backend failure", staticSource{store: failing}, "/memory/add", `{"content":"x"}`, http.StatusBadGateway, "index offline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newServer(t, tt.src)
			status, body := do(t, http.MethodPost, ts.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Contains(t, body["detail"], tt.detail)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, server.StatusFor(memory.Invalidf("bad")))
	assert.Equal(t, http.StatusServiceUnavailable, server.StatusFor(&memory.ConfigError{Setting: "X"}))
	assert.Equal(t, http.StatusBadGateway, server.StatusFor(memory.BackendError("search", errors.New("x"))))
}

func TestWebSocket(t *testing.T) {
	ts := newServer(t, staticSource{store: memorytest.New()})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	frames := []string{
		`{"ref":"1","op":"store","content":"User prefers dark mode","tags":["user_42"]}`,
		`{"ref":"2","op":"search","query":"user prefers","tags":["user_42"],"limit":5}`,
		`{"op":"list"}`,
		`{"ref":"4","op":"store","content":""}`,
		`{"ref":"5","op":"update"}`,
		`{"ref":"6","op":"delete","id":"mem-0001-0000"}`,
	}
	for _, f := range frames {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
	}

	var replies []server.Reply
	for range frames {
		var raw json.RawMessage
		require.NoError(t, conn.ReadJSON(&raw))
		var r server.Reply
		require.NoError(t, json.NewDecoder(bytes.NewReader(raw)).Decode(&r))
		replies = append(replies, r)
	}

	assert.Equal(t, "1", replies[0].Ref)
	assert.True(t, replies[0].OK)

	assert.Equal(t, "2", replies[1].Ref)
	require.True(t, replies[1].OK)
	search := replies[1].Result.(map[string]any)
	assert.Equal(t, float64(1), search["count"])

	assert.NotEmpty(t, replies[2].Ref, "missing ids are filled in")
	assert.True(t, replies[2].OK)

	assert.Equal(t, "4", replies[3].Ref)
	assert.False(t, replies[3].OK)
	assert.Equal(t, http.StatusUnprocessableEntity, replies[3].Status)

	assert.False(t, replies[4].OK)
	assert.Contains(t, replies[4].Error, "unknown operation")

	assert.Equal(t, "6", replies[5].Ref)
	require.True(t, replies[5].OK)
	assert.Equal(t, map[string]any{"deleted": true}, replies[5].Result)
}

func TestWebSocket_Origin(t *testing.T) {
	ts := newServerConfig(t, server.Config{
		Stores:         staticSource{store: memorytest.New()},
		AllowedOrigins: []string{"https://app.example"},
	})
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	tests := []struct {
		origin string
		status int
	}{
		{"", http.StatusSwitchingProtocols},
		{ts.URL, http.StatusSwitchingProtocols},
		{"https://app.example", http.StatusSwitchingProtocols},
		{"https://evil.example", http.StatusForbidden},
	}
	for _, tt := range tests {
		header := http.Header{}
		if tt.origin != "" {
			header.Set("Origin", tt.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		require.NotNil(t, resp, "origin %q", tt.origin)
		assert.Equal(t, tt.status, resp.StatusCode, "origin %q", tt.origin)
		_ = resp.Body.Close()
		if tt.status == http.StatusForbidden {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"list"}`)))
		var r server.Reply
		require.NoError(t, conn.ReadJSON(&r))
		assert.True(t, r.OK)
		_ = conn.Close()
	}
}

func TestList_EmptyBodyWithoutLength(t *testing.T) {
	store := memorytest.New()
	_, err := store.Store(context.Background(), "User prefers dark mode")
	require.NoError(t, err)

	srv, err := server.New(server.Config{Stores: staticSource{store: store}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/memory/list", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["count"])

	req = httptest.NewRequest(http.MethodPost, "/memory/list", strings.NewReader("{"))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// nanStore reports a score that JSON cannot represent.
type nanStore struct{}

func (nanStore) Store(context.Context, string, ...memory.Option) (memory.Receipt, error) {
	return memory.Receipt{}, nil
}

func (nanStore) Search(context.Context, string, ...memory.Option) ([]memory.Result, error) {
	score := math.NaN()
	return []memory.Result{{ID: "x", Content: "broken", Score: &score}}, nil
}

func (nanStore) List(context.Context, ...memory.Option) ([]memory.Memory, error) {
	return []memory.Memory{}, nil
}

func (nanStore) Delete(context.Context, string) bool { return false }

func (nanStore) Close() error { return nil }

func TestSearch_UnencodableResponseIs500(t *testing.T) {
	ts := newServer(t, staticSource{store: nanStore{}})

	status, body := do(t, http.MethodPost, ts.URL+"/memory/search", `{"query":"anything"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["detail"], "encode response")
}
