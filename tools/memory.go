// Package tools exposes the memory operations as agent tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/becomeliminal/nim-memory/api"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
)

// Tool names.
const (
	MemoryStore  = "memory_store"
	MemorySearch = "memory_search"
	MemoryList   = "memory_list"
	MemoryDelete = "memory_delete"
)

// BaseInput provides common fields for all tool inputs.
type BaseInput struct {
	// Thought contains the agent's reasoning about why it's using this tool.
	// Required for write operations, optional for reads.
	Thought string `json:"thought,omitempty"`
}

type storeInput struct {
	BaseInput
	api.AddRequest
}

type searchInput struct {
	BaseInput
	api.SearchRequest
}

type listInput struct {
	BaseInput
	api.ListRequest
}

type deleteInput struct {
	BaseInput
	api.DeleteRequest
}

var tagsProperty = ArrayProperty("Namespace tags, e.g. [\"user_42\"]. Only the first tag filters searches.", StringProperty(""))

// MemoryToolDefinitions returns the memory tools in Anthropic's format.
func MemoryToolDefinitions() []anthropic.ToolUnionParam {
	defs := []struct {
		name        string
		description string
		schema      map[string]any
	}{
		// Write operations (thought required)
		{
			name:        MemoryStore,
			description: "Save a fact, preference or observation to long-term memory so it can be recalled in later conversations.",
			schema: BuildSchemaWithThought(map[string]any{
				"content":  StringProperty("The text to remember"),
				"tags":     tagsProperty,
				"metadata": MapProperty("Optional structured context stored with the memory"),
			}, true, "content"),
		},
		{
			name:        MemoryDelete,
			description: "Delete a memory by its ID. Use when a stored fact is wrong or no longer true.",
			schema: BuildSchemaWithThought(map[string]any{
				"id": StringProperty("ID of the memory to delete"),
			}, true, "id"),
		},

		// Read operations (thought optional)
		{
			name:        MemorySearch,
			description: "Search long-term memory by meaning. Returns the most relevant memories with a relevance score when available.",
			schema: BuildSchemaWithThought(map[string]any{
				"query": StringProperty("What to look for"),
				"tags":  tagsProperty,
				"limit": IntegerProperty("Maximum number of results (default: 10)"),
			}, false, "query"),
		},
		{
			name:        MemoryList,
			description: "List stored memories without ranking, for review.",
			schema: BuildSchemaWithThought(map[string]any{
				"tags":  tagsProperty,
				"limit": IntegerProperty("Maximum number of memories (default: 20)"),
			}, false),
		},
	}

	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.name,
			Description: anthropic.String(d.description),
			InputSchema: InputSchema(d.schema),
		}})
	}
	return out
}

// Executor runs memory tool calls against a store.
type Executor struct {
	store memory.Store
	log   *slog.Logger
}

// NewExecutor returns an Executor over store. A nil logger discards logs.
func NewExecutor(store memory.Store, logger *slog.Logger) *Executor {
	return &Executor{
		store: store,
		log:   logging.OrDiscard(logger).With("component", "tools"),
	}
}

// Run executes the named tool and returns the observation text.
func (e *Executor) Run(ctx context.Context, name string, input json.RawMessage) (string, error) {
	switch name {
	case MemoryStore:
		var in storeInput
		if err := decodeInput(name, input, &in); err != nil {
			return "", err
		}
		e.logThought(name, in.Thought)
		resp, err := api.Add(ctx, e.store, in.AddRequest)
		if err != nil {
			return "", err
		}
		return resp.Message, nil

	case MemorySearch:
		var in searchInput
		if err := decodeInput(name, input, &in); err != nil {
			return "", err
		}
		e.logThought(name, in.Thought)
		resp, err := api.Search(ctx, e.store, in.SearchRequest)
		if err != nil {
			return "", err
		}
		return formatResults(resp.Results), nil

	case MemoryList:
		var in listInput
		if err := decodeInput(name, input, &in); err != nil {
			return "", err
		}
		e.logThought(name, in.Thought)
		resp, err := api.List(ctx, e.store, in.ListRequest)
		if err != nil {
			return "", err
		}
		return formatMemories(resp.Results), nil

	case MemoryDelete:
		var in deleteInput
		if err := decodeInput(name, input, &in); err != nil {
			return "", err
		}
		e.logThought(name, in.Thought)
		if api.Delete(ctx, e.store, in.DeleteRequest).Deleted {
			return "Memory deleted.", nil
		}
		return "Memory not found or could not be deleted.", nil

	default:
		return "", memory.Invalidf("unknown tool %q", name)
	}
}

// ToolResult runs a tool_use block and wraps the outcome as a tool_result
// block. Failures become error results rather than Go errors so the model
// can react to them.
func (e *Executor) ToolResult(ctx context.Context, block anthropic.ToolUseBlock) anthropic.ContentBlockParamUnion {
	text, err := e.Run(ctx, block.Name, block.Input)
	if err != nil {
		e.log.Warn("tool failed", "tool", block.Name, "id", block.ID, "error", err)
		return anthropic.NewToolResultBlock(block.ID, "Error: "+err.Error(), true)
	}
	return anthropic.NewToolResultBlock(block.ID, text, false)
}

func (e *Executor) logThought(tool, thought string) {
	if thought != "" {
		e.log.Debug("tool call", "tool", tool, "thought", memory.Preview(thought))
	}
}

func decodeInput(tool string, input json.RawMessage, v any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return memory.Invalidf("%s input: %v", tool, err)
	}
	return nil
}

func formatResults(results []memory.Result) string {
	if len(results) == 0 {
		return "No memories found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memories:\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. ", i+1)
		if r.Score != nil {
			fmt.Fprintf(&b, "[%.2f] ", *r.Score)
		}
		b.WriteString(r.Content)
		if r.ID != "" {
			fmt.Fprintf(&b, " (id: %s)", r.ID)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatMemories(memories []memory.Memory) string {
	if len(memories) == 0 {
		return "No memories stored."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d memories:\n", len(memories))
	for _, m := range memories {
		fmt.Fprintf(&b, "- %s: %s", m.ID, memory.Preview(m.Content))
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(m.Tags, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
