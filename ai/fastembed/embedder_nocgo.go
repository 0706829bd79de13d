//go:build !cgo

package fastembed

import (
	"fmt"

	"github.com/poiesic/newsembed/ai"
)

// NewBackend reports that the local model needs a cgo build.
func NewBackend(config *ai.Config) (ai.Backend, error) {
	return nil, fmt.Errorf("fastembed %s: %w (rebuild with CGO_ENABLED=1 or use the openai/ollama backend)",
		canonicalModel(config.Model), ai.ErrBackendUnavailable)
}
