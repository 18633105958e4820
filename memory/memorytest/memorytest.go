// Package memorytest provides an in-memory memory.Store for tests of code
// layered on top of a Store.
package memorytest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/becomeliminal/nim-memory/memory"
)

// Store keeps memories in a slice and scores search hits by the fraction
// of query words found in the content.
type Store struct {
	// Err, when set, is returned by Store, Search and List after input
	// validation, and makes Delete report false.
	Err error

	mu       sync.Mutex
	memories []memory.Memory
	seq      int
	closed   bool
}

var _ memory.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Store(_ context.Context, content string, opts ...memory.Option) (memory.Receipt, error) {
	if err := memory.ValidateContent(content); err != nil {
		return memory.Receipt{}, err
	}
	o := memory.Apply(0, opts...)
	if err := memory.ValidateTags(o.Tags); err != nil {
		return memory.Receipt{}, err
	}
	if s.Err != nil {
		return memory.Receipt{}, memory.BackendError("store", s.Err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("mem-%04d-0000", s.seq)
	s.memories = append(s.memories, memory.Memory{
		ID:       id,
		Content:  content,
		Tags:     o.Tags,
		Metadata: memory.StampMetadata(o.Metadata, o.Tags, time.Now()),
	})
	return memory.Receipt{ID: id, Message: memory.Confirmation(id, content)}, nil
}

func (s *Store) Search(_ context.Context, query string, opts ...memory.Option) ([]memory.Result, error) {
	if err := memory.ValidateQuery(query); err != nil {
		return nil, err
	}
	o := memory.Apply(memory.DefaultSearchLimit, opts...)
	if err := memory.ValidateLimit(o.Limit); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, memory.BackendError("search", s.Err)
	}

	words := strings.Fields(strings.ToLower(query))
	results := []memory.Result{}
	for _, m := range s.matching(o.Tags) {
		content := strings.ToLower(m.Content)
		hits := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(words))
		results = append(results, memory.Result{ID: m.ID, Content: m.Content, Score: &score, Metadata: m.Metadata})
	}
	slices.SortStableFunc(results, func(a, b memory.Result) int {
		return cmp.Compare(*b.Score, *a.Score)
	})
	if len(results) > o.Limit {
		results = results[:o.Limit]
	}
	return results, nil
}

func (s *Store) List(_ context.Context, opts ...memory.Option) ([]memory.Memory, error) {
	o := memory.Apply(memory.DefaultListLimit, opts...)
	if err := memory.ValidateLimit(o.Limit); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, memory.BackendError("list", s.Err)
	}
	out := s.matching(o.Tags)
	if len(out) > o.Limit {
		out = out[:o.Limit]
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) bool {
	if s.Err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.memories, func(m memory.Memory) bool { return m.ID == id })
	if i < 0 {
		return false
	}
	s.memories = slices.Delete(s.memories, i, i+1)
	return true
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Len returns the number of stored memories.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memories)
}

func (s *Store) matching(tags []string) []memory.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag, filtered := memory.FilterTag(tags)
	out := []memory.Memory{}
	for _, m := range s.memories {
		if filtered && !slices.Contains(m.Tags, tag) {
			continue
		}
		out = append(out, m)
	}
	return out
}
