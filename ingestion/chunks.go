package ingestion

import (
	"context"

	"github.com/poiesic/newsembed/core"
)

// RowSource is a table that can be read in slices. *table.Table implements it.
type RowSource interface {
	Len() int
	Slice(start, size int) []core.Row
}

// ChunkProducer yields the documents of a RowSource one chunk at a time.
// It is forward-only and not safe for concurrent use.
type ChunkProducer struct {
	source    RowSource
	assembler *Assembler
	chunkSize int
	cursor    int
	failed    bool
}

// NewChunkProducer creates a producer over source that assembles chunkSize
// rows per call to Next.
func NewChunkProducer(source RowSource, chunkSize int, assembler *Assembler) (*ChunkProducer, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if assembler == nil {
		return nil, ErrAssemblerRequired
	}
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	return &ChunkProducer{
		source:    source,
		assembler: assembler,
		chunkSize: chunkSize,
	}, nil
}

// ChunkSize returns the number of rows per chunk.
func (p *ChunkProducer) ChunkSize() int {
	return p.chunkSize
}

// Offset returns the index of the next row to be read.
func (p *ChunkProducer) Offset() int {
	return p.cursor
}

// HasNext reports whether another chunk is available. It is false once every
// row was read or after a failed Next.
func (p *ChunkProducer) HasNext() bool {
	return !p.failed && p.cursor < p.source.Len()
}

// Next assembles the next chunk. The last chunk may be short. Any error
// leaves the producer exhausted.
func (p *ChunkProducer) Next(ctx context.Context) ([]core.Document, error) {
	if p.failed {
		return nil, ErrProducerFailed
	}
	if p.cursor >= p.source.Len() {
		return nil, ErrProducerExhausted
	}
	if err := ctx.Err(); err != nil {
		p.failed = true
		return nil, err
	}

	rows := p.source.Slice(p.cursor, p.chunkSize)
	docs, err := p.assembler.AssembleAll(rows)
	if err != nil {
		p.failed = true
		return nil, err
	}
	p.cursor += p.chunkSize
	return docs, nil
}
