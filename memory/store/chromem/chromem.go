// Package chromem is the self-hosted memory backend: an embedded, persistent
// chromem-go collection on the local filesystem.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
)

// tagKeyPrefix marks per-tag metadata keys. chromem-go filters only by
// exact metadata match, so each tag gets its own key.
const tagKeyPrefix = "tag:"

// Config locates the on-disk collection.
type Config struct {
	Path       string
	Collection string
	Compress   bool
}

// Store implements memory.Store on a single chromem-go collection.
type Store struct {
	db     *chromem.DB
	col    *chromem.Collection
	ledger *ledger
	embed  memory.Embedder

	// writeMu serializes AddDocument and Delete. chromem-go's Delete reads
	// the document map before taking the collection lock.
	writeMu sync.Mutex

	log   *slog.Logger
	now   func() time.Time
	newID func() string
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

// WithIDGenerator replaces uuid.NewString as the identifier source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// Open creates cfg.Path if needed and opens (or creates) the collection.
func Open(cfg Config, embedder memory.Embedder, opts ...Option) (*Store, error) {
	if cfg.Path == "" {
		return nil, &memory.ConfigError{Setting: "MEMORY_DB_PATH"}
	}
	if cfg.Collection == "" {
		return nil, &memory.ConfigError{Setting: "MEMORY_COLLECTION"}
	}
	if embedder == nil {
		return nil, &memory.ConfigError{Setting: "EMBEDDER", Reason: "no embedder configured"}
	}

	s := &Store{
		embed: embedder,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log).With("component", "memory.chromem")

	if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
		return nil, &memory.ConfigError{Setting: "MEMORY_DB_PATH", Reason: err.Error()}
	}

	db, err := chromem.NewPersistentDB(filepath.Join(cfg.Path, "index"), cfg.Compress)
	if err != nil {
		return nil, memory.BackendError("open", err)
	}

	col, err := db.GetOrCreateCollection(cfg.Collection, map[string]string{"space": "cosine"}, embedder.Embed)
	if err != nil {
		return nil, memory.BackendError("open", err)
	}

	l, err := openLedger(filepath.Join(cfg.Path, cfg.Collection+".ledger.json"))
	if err != nil {
		return nil, memory.BackendError("open", err)
	}

	s.db, s.col, s.ledger = db, col, l

	s.log.Info("chromem initialized",
		"path", cfg.Path,
		"collection", cfg.Collection,
		"count", col.Count(),
	)
	return s, nil
}

// Store embeds and persists content under a freshly minted identifier.
func (s *Store) Store(ctx context.Context, content string, opts ...memory.Option) (memory.Receipt, error) {
	if err := memory.ValidateContent(content); err != nil {
		return memory.Receipt{}, err
	}
	o := memory.Apply(0, opts...)
	if err := memory.ValidateTags(o.Tags); err != nil {
		return memory.Receipt{}, err
	}

	// The id is fixed before the backend call.
	id := s.newID()
	md := memory.StampMetadata(o.Metadata, o.Tags, s.now())

	vec, err := s.embed.Embed(ctx, content)
	if err != nil {
		s.log.Error("embed failed", "op", "store", "id", id, "error", err)
		return memory.Receipt{}, memory.BackendError("store", err)
	}
	if err := checkVector(vec); err != nil {
		s.log.Error("unusable embedding", "op", "store", "id", id, "error", err)
		return memory.Receipt{}, memory.BackendError("store", err)
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: vec,
		Metadata:  encodeMetadata(md, o.Tags),
	}
	if err := s.add(ctx, doc); err != nil {
		s.log.Error("add document failed", "id", id, "error", err)
		return memory.Receipt{}, memory.BackendError("store", err)
	}

	s.log.Info("memory stored",
		"id", id,
		"preview", memory.Preview(content),
		"tags", o.Tags,
	)
	return memory.Receipt{ID: id, Message: memory.Confirmation(id, content)}, nil
}

// add writes doc and records it in the ledger, undoing the write when the
// ledger cannot be updated.
func (s *Store) add(ctx context.Context, doc chromem.Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.col.AddDocument(ctx, doc); err != nil {
		return err
	}
	if err := s.ledger.append(doc.ID); err != nil {
		_ = s.col.Delete(ctx, nil, nil, doc.ID)
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}

// Search ranks stored memories by cosine similarity to query.
func (s *Store) Search(ctx context.Context, query string, opts ...memory.Option) ([]memory.Result, error) {
	if err := memory.ValidateQuery(query); err != nil {
		return nil, err
	}
	o := memory.Apply(memory.DefaultSearchLimit, opts...)
	if err := memory.ValidateLimit(o.Limit); err != nil {
		return nil, err
	}
	tag, _ := memory.FilterTag(o.Tags)
	if o.Limit == 0 {
		return []memory.Result{}, nil
	}

	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		s.log.Error("embed failed", "op", "search", "error", err)
		return nil, memory.BackendError("search", err)
	}
	if err := checkVector(vec); err != nil {
		s.log.Error("unusable embedding", "op", "search", "error", err)
		return nil, memory.BackendError("search", err)
	}

	raw, err := s.query(ctx, vec, o.Limit, whereTag(o.Tags))
	if err != nil {
		s.log.Error("query failed", "query", memory.Preview(query), "tag", tag, "error", err)
		return nil, memory.BackendError("search", err)
	}

	results := make([]memory.Result, 0, len(raw))
	for _, r := range raw {
		if math.IsNaN(float64(r.Similarity)) {
			s.log.Warn("skipping result without similarity", "id", r.ID)
			continue
		}
		// chromem reports cosine similarity; cosine distance is 1 - similarity.
		distance := max(0, 1-float64(r.Similarity))
		results = append(results, memory.Result{
			ID:       r.ID,
			Content:  r.Content,
			Score:    memory.ScoreFromDistance(distance),
			Metadata: decodeMetadata(r.Metadata),
		})
	}

	s.log.Info("memory search",
		"query", memory.Preview(query),
		"tag", tag,
		"count", len(results),
	)
	return results, nil
}

// query bounds nResults by the collection size, which chromem-go requires.
// A concurrent Delete can shrink the collection between Count and the query,
// so the insufficient-documents error is retried with the new count.
func (s *Store) query(ctx context.Context, vec []float32, limit int, where map[string]string) ([]chromem.Result, error) {
	const attempts = 3

	var lastErr error
	for range attempts {
		n := min(limit, s.col.Count())
		if n == 0 {
			return nil, nil
		}
		res, err := s.col.QueryEmbedding(ctx, vec, n, where, nil)
		if err == nil {
			return res, nil
		}
		if !isInsufficientDocs(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// List enumerates memories in insertion order.
func (s *Store) List(ctx context.Context, opts ...memory.Option) ([]memory.Memory, error) {
	o := memory.Apply(memory.DefaultListLimit, opts...)
	if err := memory.ValidateLimit(o.Limit); err != nil {
		return nil, err
	}
	tag, filtered := memory.FilterTag(o.Tags)

	out := []memory.Memory{}
	for _, id := range s.ledger.snapshot() {
		if len(out) >= o.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, memory.BackendError("list", err)
		}

		doc, err := s.col.GetByID(ctx, id)
		if err != nil {
			s.log.Debug("skipping ledger entry", "id", id, "error", err)
			continue
		}
		if filtered && doc.Metadata[tagKeyPrefix+tag] != "true" {
			continue
		}

		md := decodeMetadata(doc.Metadata)
		out = append(out, memory.Memory{
			ID:       doc.ID,
			Content:  doc.Content,
			Tags:     tagsOf(doc.Metadata),
			Metadata: md,
		})
	}

	s.log.Debug("memory list", "tag", tag, "count", len(out))
	return out, nil
}

// Delete removes the document with id. Unknown ids report false.
func (s *Store) Delete(ctx context.Context, id string) bool {
	if _, err := s.col.GetByID(ctx, id); err != nil {
		s.log.Warn("delete failed", "id", id, "error", err)
		return false
	}
	s.writeMu.Lock()
	err := s.col.Delete(ctx, nil, nil, id)
	s.writeMu.Unlock()
	if err != nil {
		s.log.Warn("delete failed", "id", id, "error", err)
		return false
	}
	if err := s.ledger.remove(id); err != nil {
		// The document is gone; List skips the stale entry.
		s.log.Warn("ledger remove failed", "id", id, "error", err)
	}

	s.log.Info("memory deleted", "id", id)
	return true
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	return s.col.Count()
}

// Close is a no-op: chromem-go persists each write immediately.
func (s *Store) Close() error {
	return nil
}

// checkVector rejects embeddings that cosine similarity cannot rank.
func checkVector(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("embedding is empty")
	}
	var norm float64
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New("embedding has non-finite values")
		}
		norm += f * f
	}
	if norm == 0 {
		return errors.New("embedding has zero norm")
	}
	return nil
}

func whereTag(tags []string) map[string]string {
	tag, ok := memory.FilterTag(tags)
	if !ok {
		return nil
	}
	return map[string]string{tagKeyPrefix + tag: "true"}
}

// encodeMetadata flattens md into chromem's string map. Non-string values
// are stored as JSON.
func encodeMetadata(md map[string]any, tags []string) map[string]string {
	out := make(map[string]string, len(md)+len(tags))
	for k, v := range md {
		if strings.HasPrefix(k, tagKeyPrefix) {
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = "null"
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(b)
		}
	}
	for _, tag := range tags {
		out[tagKeyPrefix+tag] = "true"
	}
	return out
}

func decodeMetadata(md map[string]string) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		if strings.HasPrefix(k, tagKeyPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// tagsOf recovers the ordered tag list from the joined field. The field is
// only trusted when per-tag keys show tags were supplied at store time.
func tagsOf(md map[string]string) []string {
	for k := range md {
		if strings.HasPrefix(k, tagKeyPrefix) {
			return memory.SplitTags(md[memory.MetaTags])
		}
	}
	return nil
}

func isInsufficientDocs(err error) bool {
	return strings.Contains(err.Error(), "nResults must be")
}
