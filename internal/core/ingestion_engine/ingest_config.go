package ingestion_engine

import (
	"time"
)

const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 100
	DefaultEmbedBatchSize  = 100
	DefaultInsertBatchSize = 50
	DefaultQueueSize       = 64
)

// IngestConfig tunes the pipeline.
//
// ChunkSize:        characters per chunk window (e.g., 1000).
// ChunkOverlap:     characters shared by consecutive windows (e.g., 100).
// EmbedBatchSize:   chunks per embedding request; bounded by the provider's input limit.
// EmbedConcurrency: embedding requests in flight for one document (1 = sequential).
// EmbedRatePerSec:  request pacing across batches (0 = unlimited).
// EmbedDim:         expected vector dimension; 0 skips the check.
// InsertBatchSize:  rows per INSERT statement into the knowledge base.
// ProcessTimeout:   upper bound for one ProcessDocument run.
type IngestConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	EmbedBatchSize   int
	EmbedConcurrency int
	EmbedRatePerSec  float64
	EmbedDim         int
	InsertBatchSize  int
	ProcessTimeout   time.Duration
}

// withDefaults fills unset knobs.
func (c IngestConfig) withDefaults() IngestConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = DefaultEmbedBatchSize
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 1
	}
	if c.InsertBatchSize <= 0 {
		c.InsertBatchSize = DefaultInsertBatchSize
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = 5 * time.Minute
	}
	return c
}
