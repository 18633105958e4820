// Package supermemory is the remote memory backend: a client for the
// Supermemory hosted service. The service assigns identifiers, ranks
// results itself and filters natively by container tag.
package supermemory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
)

const DefaultBaseURL = "https://api.supermemory.ai"

// Config holds the service credentials.
type Config struct {
	APIKey  string
	BaseURL string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

// Store implements memory.Store against the hosted service.
type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client

	log *slog.Logger
	now func() time.Time
}

var _ memory.Store = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces the time source used for the timestamp field.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a client. A missing API key fails here rather than on first use.
func New(cfg Config, opts ...Option) (*Store, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &memory.ConfigError{Setting: "SUPERMEMORY_API_KEY"}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	s := &Store{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log).With("component", "memory.supermemory")

	s.log.Info("supermemory initialized", "base_url", s.baseURL)
	return s, nil
}

// Store submits content. The identifier is whatever the service returns.
func (s *Store) Store(ctx context.Context, content string, opts ...memory.Option) (memory.Receipt, error) {
	if err := memory.ValidateContent(content); err != nil {
		return memory.Receipt{}, err
	}
	o := memory.Apply(0, opts...)
	if err := memory.ValidateTags(o.Tags); err != nil {
		return memory.Receipt{}, err
	}

	body := map[string]any{
		"content":  content,
		"metadata": flattenMetadata(memory.StampMetadata(o.Metadata, o.Tags, s.now())),
	}
	if len(o.Tags) > 0 {
		body["containerTags"] = o.Tags
	}

	payload, err := s.do(ctx, http.MethodPost, "/v3/documents", body)
	if err != nil {
		s.log.Error("store failed", "preview", memory.Preview(content), "tags", o.Tags, "error", err)
		return memory.Receipt{}, memory.BackendError("store", err)
	}

	id := gjson.GetBytes(payload, "id").String()
	s.log.Info("memory stored", "id", id, "preview", memory.Preview(content), "tags", o.Tags)
	return memory.Receipt{ID: id, Message: memory.Confirmation("", content)}, nil
}

// Search returns the service's ranking unchanged. Scores are passed through
// as reported and omitted when the service reports none.
func (s *Store) Search(ctx context.Context, query string, opts ...memory.Option) ([]memory.Result, error) {
	if err := memory.ValidateQuery(query); err != nil {
		return nil, err
	}
	o := memory.Apply(memory.DefaultSearchLimit, opts...)
	if err := memory.ValidateLimit(o.Limit); err != nil {
		return nil, err
	}
	tag, filtered := memory.FilterTag(o.Tags)
	if o.Limit == 0 {
		return []memory.Result{}, nil
	}

	body := map[string]any{"q": query, "limit": o.Limit}
	if filtered {
		body["containerTags"] = []string{tag}
	}

	payload, err := s.do(ctx, http.MethodPost, "/v3/search", body)
	if err != nil {
		s.log.Error("search failed", "query", memory.Preview(query), "tag", tag, "error", err)
		return nil, memory.BackendError("search", err)
	}

	results := []memory.Result{}
	for _, r := range gjson.GetBytes(payload, "results").Array() {
		score := r.Get("score")
		if !score.Exists() {
			score = r.Get("similarity")
		}
		results = append(results, memory.Result{
			ID:       firstString(r, "documentId", "id"),
			Content:  resultContent(r),
			Score:    memory.NativeScore(score.Float(), score.Exists() && score.Type == gjson.Number),
			Metadata: objectOf(r.Get("metadata")),
		})
		if len(results) == o.Limit {
			break
		}
	}

	s.log.Info("memory search", "query", memory.Preview(query), "tag", tag, "count", len(results))
	return results, nil
}

// List returns the first page of documents in service order.
func (s *Store) List(ctx context.Context, opts ...memory.Option) ([]memory.Memory, error) {
	o := memory.Apply(memory.DefaultListLimit, opts...)
	if err := memory.ValidateLimit(o.Limit); err != nil {
		return nil, err
	}
	tag, filtered := memory.FilterTag(o.Tags)
	if o.Limit == 0 {
		return []memory.Memory{}, nil
	}

	body := map[string]any{"limit": o.Limit, "page": 1}
	if filtered {
		body["containerTags"] = []string{tag}
	}

	payload, err := s.do(ctx, http.MethodPost, "/v3/documents/list", body)
	if err != nil {
		s.log.Error("list failed", "tag", tag, "error", err)
		return nil, memory.BackendError("list", err)
	}

	out := []memory.Memory{}
	for _, m := range gjson.GetBytes(payload, "memories").Array() {
		var tags []string
		for _, t := range m.Get("containerTags").Array() {
			tags = append(tags, t.String())
		}
		out = append(out, memory.Memory{
			ID:       m.Get("id").String(),
			Content:  firstString(m, "content", "summary", "title"),
			Tags:     tags,
			Metadata: objectOf(m.Get("metadata")),
		})
		if len(out) == o.Limit {
			break
		}
	}

	s.log.Debug("memory list", "tag", tag, "count", len(out))
	return out, nil
}

// Delete removes a document. Any failure, including 404, reports false.
func (s *Store) Delete(ctx context.Context, id string) bool {
	if strings.TrimSpace(id) == "" {
		s.log.Warn("delete failed", "id", id, "error", "empty id")
		return false
	}
	if _, err := s.do(ctx, http.MethodDelete, "/v3/documents/"+url.PathEscape(id), nil); err != nil {
		s.log.Warn("delete failed", "id", id, "error", err)
		return false
	}
	s.log.Info("memory deleted", "id", id)
	return true
}

// Close drops idle connections to the service.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s -> http %d: %s",
			method, path, resp.StatusCode, memory.Preview(strings.TrimSpace(string(payload))))
	}
	if len(payload) > 0 && !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%s %s: response is not valid JSON", method, path)
	}
	return payload, nil
}

// flattenMetadata keeps string, number and boolean values as they are and
// JSON-encodes anything else. The service accepts only primitive values.
func flattenMetadata(md map[string]any) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			out[k] = v
		default:
			b, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprint(v)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

// resultContent reads the text of a search hit. Document hits carry their
// matching chunks instead of a top-level content field.
func resultContent(r gjson.Result) string {
	if c := firstString(r, "content", "memory"); c != "" {
		return c
	}
	var parts []string
	for _, chunk := range r.Get("chunks").Array() {
		if c := chunk.Get("content").String(); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n")
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func objectOf(r gjson.Result) map[string]any {
	if !r.IsObject() {
		return nil
	}
	m, _ := r.Value().(map[string]any)
	return m
}
