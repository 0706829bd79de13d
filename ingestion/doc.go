// Package ingestion turns rows of a news table into vectors in a vector store.
//
// The work is split into four pieces that the Pipeline wires together:
//   - Assembler builds one Document per row from a content field and a fixed
//     set of metadata fields
//   - ChunkProducer pulls fixed-size chunks of rows and assembles them, so only
//     one chunk is in memory at a time
//   - embedding.Batcher embeds each chunk in concurrent batches
//   - Sink upserts every completed batch and advances a ProgressTracker
//
// Processing is strictly sequential between chunks and between batches. The
// first failure stops the run; batches written before it stay written.
package ingestion
