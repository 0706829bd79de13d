package ingestion

import "errors"

var (
	// ErrSourceRequired is returned when a chunk producer has no row source.
	ErrSourceRequired = errors.New("row source required")

	// ErrAssemblerRequired is returned when a chunk producer has no assembler.
	ErrAssemblerRequired = errors.New("assembler required")

	// ErrContentFieldRequired is returned when an assembler has no content field.
	ErrContentFieldRequired = errors.New("content field required")

	// ErrInvalidChunkSize is returned for a chunk size below one.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrBatchExceedsChunk is returned when the batch size is larger than the
	// chunk size.
	ErrBatchExceedsChunk = errors.New("batch size must not exceed chunk size")

	// ErrProducerFailed is returned by Next after an earlier call failed.
	ErrProducerFailed = errors.New("chunk producer failed")

	// ErrProducerExhausted is returned by Next once every row has been read.
	ErrProducerExhausted = errors.New("chunk producer exhausted")

	// ErrStoreRequired is returned when a sink has no vector store.
	ErrStoreRequired = errors.New("vector store required")

	// ErrBatcherRequired is returned when a pipeline has no batcher.
	ErrBatcherRequired = errors.New("batcher required")

	// ErrProducerRequired is returned when a pipeline has no chunk producer.
	ErrProducerRequired = errors.New("chunk producer required")

	// ErrSinkRequired is returned when a pipeline has no sink.
	ErrSinkRequired = errors.New("sink required")
)
