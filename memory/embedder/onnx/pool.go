package onnx

import (
	"fmt"

	"github.com/becomeliminal/nim-memory/memory"
)

// Pool reduces a model output to one unit vector of length dims.
//
// Shapes [1, dims] are already pooled. Shapes [1, seq, dims] are mean-pooled
// over positions where mask is 1.
func Pool(data []float32, shape []int64, mask []int64, dims int) ([]float32, error) {
	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("onnx: output has %d values, want %d", len(data), dims)
		}
		out := make([]float32, dims)
		copy(out, data[:dims])
		return memory.Normalize(out), nil

	case 3:
		if shape[0] != 1 {
			return nil, fmt.Errorf("onnx: batch size %d, want 1", shape[0])
		}
		seqLen, hidden := int(shape[1]), int(shape[2])
		if hidden != dims {
			return nil, fmt.Errorf("onnx: hidden size %d, want %d", hidden, dims)
		}
		if len(data) < seqLen*hidden {
			return nil, fmt.Errorf("onnx: output has %d values, want %d", len(data), seqLen*hidden)
		}

		out := make([]float32, dims)
		var attended float32
		for i := 0; i < seqLen && i < len(mask); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*hidden : (i+1)*hidden]
			for j, v := range row {
				out[j] += v
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("onnx: no attended tokens")
		}
		for j := range out {
			out[j] /= attended
		}
		return memory.Normalize(out), nil

	default:
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
}
