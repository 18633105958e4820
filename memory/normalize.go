package memory

import "math"

// FilterTag returns the tag that filters a Search or List call.
//
// Only the first supplied tag participates. Backends whose filter language
// matches a single value cannot express OR across tags, and both backends
// keep the same rule so results do not change when the backend does.
func FilterTag(tags []string) (string, bool) {
	if len(tags) == 0 {
		return "", false
	}
	return tags[0], true
}

// ScoreFromDistance converts a distance (0 = identical) to a similarity
// score. The result is not clamped: distances above 1.0 give negative
// scores.
func ScoreFromDistance(distance float64) *float64 {
	score := 1.0 - distance
	return &score
}

// NativeScore passes a backend relevance figure through unchanged. It
// returns nil when the backend did not report one.
func NativeScore(score float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &score
}

// Normalize scales vec to unit length. A zero vector is returned as is.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
