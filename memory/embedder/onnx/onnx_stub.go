//go:build !onnx

// Package onnx embeds text locally with a sentence-transformer ONNX model.
// This build does not include the runtime; rebuild with -tags onnx.
package onnx

import (
	"context"
	"errors"
)

// Embedder is unavailable without the onnx build tag.
type Embedder struct{}

// New validates cfg and reports that ONNX support was not compiled in.
func New(cfg Config) (*Embedder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return nil, errors.New("onnx: support not compiled in (rebuild with -tags onnx)")
}

func (e *Embedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("onnx: support not compiled in")
}

func (e *Embedder) Close() error { return nil }
