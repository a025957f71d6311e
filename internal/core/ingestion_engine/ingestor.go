package ingestion_engine

import (
	"context"
	"sync"
)

const (
	// InterruptedMessage is recorded on documents still queued at shutdown.
	InterruptedMessage = "Processing was interrupted before it started; trigger it again"
	// AbandonedMessage is recorded on documents whose run stopped without
	// finishing, found once their lease has run out.
	AbandonedMessage = "Processing was interrupted; trigger it again"
)

type Ingestor interface {
	Start(ctx context.Context, numWorkers int)
	Trigger(ctx context.Context, documentID string) error
	ProcessDocument(ctx context.Context, documentID string) Result
}

var _ Ingestor = (*DocumentIngestor)(nil)

// Start runs numWorkers goroutines reading from the jobs channel. Each job runs
// to completion even if ctx is cancelled meanwhile; once ctx is done the
// workers fail whatever is still queued and exit. Done is closed after that.
func (i *DocumentIngestor) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					i.drain(ctx)
					i.logger.Info("ingestion worker shutting down", "worker", w)
					return
				case docID := <-i.jobs:
					i.logger.Info("ingestion worker picked up document", "document_id", docID, "worker", w)
					// The job outlives a shutdown signal; ProcessTimeout still bounds it.
					res := i.ProcessDocument(context.WithoutCancel(ctx), docID)
					if !res.Success {
						i.logger.Warn("ingestion job finished with error", "document_id", docID, "error", res.Error)
					}
				}
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(i.done)
	}()
}

// Done is closed once every worker started by Start has exited.
func (i *DocumentIngestor) Done() <-chan struct{} {
	return i.done
}

// Trigger schedules a document for background processing and returns at once.
// It fails with ErrQueueFull instead of blocking the caller.
func (i *DocumentIngestor) Trigger(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case i.jobs <- documentID:
		return nil
	default:
		return ErrQueueFull
	}
}

func (i *DocumentIngestor) drain(ctx context.Context) {
	for {
		select {
		case docID := <-i.jobs:
			// No run has started on a queued document, so the claim itself is released.
			if err := i.docs.MarkDocumentError(context.WithoutCancel(ctx), docID, "", InterruptedMessage); err != nil {
				i.logger.Error("mark interrupted document failed", "document_id", docID, "error", err)
			}
		default:
			return
		}
	}
}
