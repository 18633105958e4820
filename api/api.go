// Package api defines the wire-level request and response bodies of the
// memory operations and dispatches them to a memory.Store. The HTTP,
// websocket, gRPC and agent tool surfaces all go through it.
package api

import (
	"context"
	"encoding/json"

	"github.com/becomeliminal/nim-memory/memory"
)

// Operation names.
const (
	OpStore  = "store"
	OpSearch = "search"
	OpList   = "list"
	OpDelete = "delete"
)

// AddRequest is the store body.
type AddRequest struct {
	Content  string         `json:"content"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddResponse carries the confirmation message and, when known, the id.
type AddResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// SearchRequest is the search body. A nil Limit selects the default of 10.
type SearchRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags,omitempty"`
	Limit *int     `json:"limit,omitempty"`
}

// SearchResponse lists results in rank order.
type SearchResponse struct {
	Results []memory.Result `json:"results"`
	Count   int             `json:"count"`
}

// ListRequest is the list body. A nil Limit selects the default of 20.
type ListRequest struct {
	Tags  []string `json:"tags,omitempty"`
	Limit *int     `json:"limit,omitempty"`
}

// ListResponse lists memories in backend order.
type ListResponse struct {
	Results []memory.Memory `json:"results"`
	Count   int             `json:"count"`
}

// DeleteRequest names the memory to remove.
type DeleteRequest struct {
	ID string `json:"id"`
}

// DeleteResponse reports whether a memory was removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// Add stores req.Content with its tags and metadata.
func Add(ctx context.Context, s memory.Store, req AddRequest) (AddResponse, error) {
	receipt, err := s.Store(ctx, req.Content,
		memory.WithTags(req.Tags...),
		memory.WithMetadata(req.Metadata),
	)
	if err != nil {
		return AddResponse{}, err
	}
	return AddResponse{Message: receipt.Message, ID: receipt.ID}, nil
}

// Search runs a ranked search. Results are never nil.
func Search(ctx context.Context, s memory.Store, req SearchRequest) (SearchResponse, error) {
	opts := []memory.Option{memory.WithTags(req.Tags...)}
	if req.Limit != nil {
		opts = append(opts, memory.WithLimit(*req.Limit))
	}
	results, err := s.Search(ctx, req.Query, opts...)
	if err != nil {
		return SearchResponse{}, err
	}
	if results == nil {
		results = []memory.Result{}
	}
	return SearchResponse{Results: results, Count: len(results)}, nil
}

// List enumerates memories. Results are never nil.
func List(ctx context.Context, s memory.Store, req ListRequest) (ListResponse, error) {
	opts := []memory.Option{memory.WithTags(req.Tags...)}
	if req.Limit != nil {
		opts = append(opts, memory.WithLimit(*req.Limit))
	}
	memories, err := s.List(ctx, opts...)
	if err != nil {
		return ListResponse{}, err
	}
	if memories == nil {
		memories = []memory.Memory{}
	}
	return ListResponse{Results: memories, Count: len(memories)}, nil
}

// Delete removes req.ID. It never fails; see memory.Store.Delete.
func Delete(ctx context.Context, s memory.Store, req DeleteRequest) DeleteResponse {
	return DeleteResponse{Deleted: s.Delete(ctx, req.ID)}
}

// Dispatch decodes payload as the request body of op and runs it.
// Undecodable payloads and unknown operations are ErrInvalidInput.
func Dispatch(ctx context.Context, s memory.Store, op string, payload []byte) (any, error) {
	switch op {
	case OpStore:
		var req AddRequest
		if err := decode(op, payload, &req); err != nil {
			return nil, err
		}
		return Add(ctx, s, req)
	case OpSearch:
		var req SearchRequest
		if err := decode(op, payload, &req); err != nil {
			return nil, err
		}
		return Search(ctx, s, req)
	case OpList:
		var req ListRequest
		if err := decode(op, payload, &req); err != nil {
			return nil, err
		}
		return List(ctx, s, req)
	case OpDelete:
		var req DeleteRequest
		if err := decode(op, payload, &req); err != nil {
			return nil, err
		}
		return Delete(ctx, s, req), nil
	default:
		return nil, memory.Invalidf("unknown operation %q", op)
	}
}

func decode(op string, payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return memory.Invalidf("decode %s request: %v", op, err)
	}
	return nil
}
