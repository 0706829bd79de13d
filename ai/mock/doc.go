// Package mock provides a test double for the ai.Backend interface.
//
// The mock lets tests and dry runs work without a model. It returns
// deterministic unit-length vectors derived from an FNV hash of the text,
// and exposes EmbedTextFunc for failure injection.
//
//	backend := mock.NewMockEmbedder()
//	backend.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("model offline")
//	}
//	count := backend.CallCount()
package mock
