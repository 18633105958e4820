// Package memory defines the semantic-memory contract shared by every backend.
//
// A memory is a piece of free text stored together with namespace tags and
// open metadata. It is retrieved by meaning rather than exact match.
//
// Architecture:
//   - Store: the four-operation contract (Store, Search, List, Delete)
//   - Embedder: text-to-vector conversion for backends that index locally
//   - Recaller: formats search hits for prompt injection
//
// Backends:
//   - store/chromem: embedded, persisted chromem-go index (IDs minted locally)
//   - store/supermemory: hosted memory service (IDs assigned by the service)
//
// Both backends share the validation, metadata and score policy in this
// package so that switching backends does not change what a caller sees.
//
// Tag filtering is single-tag: when several tags are passed to Search or List,
// only the first one filters. See FilterTag.
package memory
