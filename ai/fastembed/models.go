// Package fastembed runs sentence-transformer models in process through
// ONNX Runtime. The model is loaded once and shared by all callers.
//
// Mean pooling and L2 normalization are applied by the model pipeline
// itself, so the backend's output is already unit length.
package fastembed

import "strings"

// canonicalModel strips the hub organisation so "Xenova/all-MiniLM-L6-v2"
// and "sentence-transformers/all-MiniLM-L6-v2" resolve to the same entry.
func canonicalModel(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(strings.ToLower(name), "fast-")
}
