package main

import (
	"context"
	"math"
)

// placeholderEmbedder stands in for the external embedding model the core
// treats as a pure collaborator. No embedding library ships in
// this repo's dependency pack, so synapsectl derives a deterministic
// fixed-dimension vector from character codes: good enough to exercise
// ingest/search end to end, not a real semantic embedding.
type placeholderEmbedder struct{ dim int }

func (e placeholderEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dim)
	for i, r := range text {
		v[i%e.dim] += float32(r % 97)
	}
	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}
