// Package embedding turns documents into embedding vectors.
//
// Embedder adapts a shared ai.Backend: it is initialized once with a model,
// assigns ids (metadata["id"] or a fresh UUID), defaults metadata to the
// embedded text, and reports failures as core.EmbeddingBackendError after
// logging the offending text.
//
// Batcher groups documents into batches and embeds each batch with a
// bounded fan-out on an ants worker pool. A batch is delivered to its
// callback whole and in input order, or not at all.
package embedding
