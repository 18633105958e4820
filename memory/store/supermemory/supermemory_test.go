package supermemory_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store/supermemory"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

type fakeService struct {
	mu       sync.Mutex
	requests []recorded
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method: r.Method,
		path:   r.URL.EscapedPath(),
		auth:   r.Header.Get("Authorization"),
		body:   body,
	})
	f.mu.Unlock()
	f.respond(w, r)
}

func (f *fakeService) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func (f *fakeService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newStore(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*supermemory.Store, *fakeService) {
	t.Helper()
	fake := &fakeService{respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s, err := supermemory.New(
		supermemory.Config{APIKey: "sm_test", BaseURL: srv.URL + "/"},
		supermemory.WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := supermemory.New(supermemory.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, memory.ErrConfiguration))
	assert.Contains(t, err.Error(), "SUPERMEMORY_API_KEY")
}

func TestStore(t *testing.T) {
	s, fake := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"doc_abc123456","status":"queued"}`)
	})

	receipt, err := s.Store(context.Background(), "User prefers dark mode",
		memory.WithTags("user_42", "prefs"),
		memory.WithMetadata(map[string]any{
			"timestamp": "ignored",
			"priority":  2,
			"nested":    map[string]any{"a": 1},
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, "doc_abc123456", receipt.ID)
	assert.Equal(t, "Memory stored: User prefers dark mode...", receipt.Message)

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/v3/documents", req.path)
	assert.Equal(t, "Bearer sm_test", req.auth)
	assert.Equal(t, "User prefers dark mode", req.body["content"])
	assert.Equal(t, []any{"user_42", "prefs"}, req.body["containerTags"])

	md := req.body["metadata"].(map[string]any)
	assert.Equal(t, "2026-03-04T05:06:07Z", md["timestamp"])
	assert.Equal(t, float64(2), md["priority"])
	assert.Equal(t, `{"a":1}`, md["nested"])
}

func TestStore_EmptyContentNeverCallsService(t *testing.T) {
	s, fake := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	_, err := s.Store(context.Background(), "\n\t ")
	assert.True(t, errors.Is(err, memory.ErrInvalidInput))
	assert.Equal(t, 0, fake.count())
}

func TestStore_ServiceError(t *testing.T) {
	s, _ := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":"boom"}`)
	})

	_, err := s.Store(context.Background(), "content")
	require.Error(t, err)
	assert.True(t, errors.Is(err, memory.ErrBackend))
	assert.Contains(t, err.Error(), "500")
	assert.NotContains(t, err.Error(), "sm_test")
}

func TestSearch(t *testing.T) {
	s, fake := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":[
			{"documentId":"d1","score":0.91,"chunks":[{"content":"User prefers"},{"content":"dark mode"}],"metadata":{"source":"chat"}},
			{"id":"m2","memory":"Likes green tea"},
			{"content":"Lives in Berlin","similarity":0.4}
		],"total":3}`)
	})

	results, err := s.Search(context.Background(), "user preferences",
		memory.WithTags("user_42", "ignored"), memory.WithLimit(5))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, "User prefers\ndark mode", results[0].Content)
	require.NotNil(t, results[0].Score)
	assert.InDelta(t, 0.91, *results[0].Score, 1e-9)
	assert.Equal(t, map[string]any{"source": "chat"}, results[0].Metadata)

	assert.Equal(t, "m2", results[1].ID)
	assert.Equal(t, "Likes green tea", results[1].Content)
	assert.Nil(t, results[1].Score)

	assert.Empty(t, results[2].ID)
	require.NotNil(t, results[2].Score)
	assert.InDelta(t, 0.4, *results[2].Score, 1e-9)

	req := fake.last(t)
	assert.Equal(t, "/v3/search", req.path)
	assert.Equal(t, "user preferences", req.body["q"])
	assert.Equal(t, float64(5), req.body["limit"])
	// Only the first tag filters.
	assert.Equal(t, []any{"user_42"}, req.body["containerTags"])
}

func TestSearch_LimitZeroAndEmpty(t *testing.T) {
	s, fake := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"results":[],"total":0}`)
	})
	ctx := context.Background()

	results, err := s.Search(ctx, "anything", memory.WithLimit(0))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, fake.count())

	results, err = s.Search(ctx, "anything", memory.WithTags("nonexistent_tag"))
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	_, err = s.Search(ctx, "anything", memory.WithLimit(-1))
	assert.True(t, errors.Is(err, memory.ErrInvalidInput))
}

func TestSearch_InvalidJSON(t *testing.T) {
	s, _ := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `<html>`)
	})

	_, err := s.Search(context.Background(), "q")
	assert.True(t, errors.Is(err, memory.ErrBackend))
}

func TestList(t *testing.T) {
	s, fake := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"memories":[
			{"id":"d1","content":"first","containerTags":["user_42"],"metadata":{"timestamp":"2026-01-01T00:00:00Z"}},
			{"id":"d2","summary":"second summary","containerTags":[]}
		],"pagination":{"currentPage":1}}`)
	})

	listed, err := s.List(context.Background(), memory.WithTags("user_42"))
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, memory.Memory{
		ID:       "d1",
		Content:  "first",
		Tags:     []string{"user_42"},
		Metadata: map[string]any{"timestamp": "2026-01-01T00:00:00Z"},
	}, listed[0])
	assert.Equal(t, "second summary", listed[1].Content)

	req := fake.last(t)
	assert.Equal(t, "/v3/documents/list", req.path)
	assert.Equal(t, float64(memory.DefaultListLimit), req.body["limit"])
	assert.Equal(t, []any{"user_42"}, req.body["containerTags"])
}

func TestDelete(t *testing.T) {
	s, fake := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v3/documents/known" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
	})
	ctx := context.Background()

	assert.True(t, s.Delete(ctx, "known"))
	assert.Equal(t, http.MethodDelete, fake.last(t).method)

	assert.False(t, s.Delete(ctx, "missing"))
	assert.False(t, s.Delete(ctx, ""))

	assert.False(t, s.Delete(ctx, "a/b"))
	assert.Equal(t, "/v3/documents/a%2Fb", fake.last(t).path)
}
