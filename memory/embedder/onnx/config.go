package onnx

import (
	"github.com/becomeliminal/nim-memory/memory"
)

// Config configures the ONNX embedder.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library. Empty uses the
	// runtime's default lookup.
	LibraryPath string

	// Dimensions is the embedding vector size (default: 384 for all-MiniLM-L6-v2).
	Dimensions int
}

func (c *Config) validate() error {
	if c.ModelPath == "" {
		return &memory.ConfigError{Setting: "ONNX_MODEL_PATH"}
	}
	if c.TokenizerPath == "" {
		return &memory.ConfigError{Setting: "ONNX_TOKENIZER_PATH"}
	}
	if c.Dimensions == 0 {
		c.Dimensions = 384
	}
	return nil
}
