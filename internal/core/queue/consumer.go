package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/markdave123-py/flowdesk/internal/core/ingestion_engine"
	"github.com/markdave123-py/flowdesk/internal/logger"
)

type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, documentID string) ingestion_engine.Result
}

// Consumer runs the pipeline for each message. Failures are recorded on the
// document by the pipeline and never requeued. While a run is in progress
// the message is touched every touchEvery so nsqd does not redeliver it, and
// a second delivery of a document already running here is dropped.
type Consumer struct {
	processor  DocumentProcessor
	touchEvery time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewConsumer builds a consumer; touchEvery <= 0 disables touching.
func NewConsumer(p DocumentProcessor, touchEvery time.Duration) *Consumer {
	return &Consumer{processor: p, touchEvery: touchEvery, inFlight: map[string]struct{}{}}
}

func (c *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var msg ProcessMessage
	if err := json.Unmarshal(m.Body, &msg); err != nil || msg.DocumentID == "" {
		// Poison pill: do not retry.
		slog.Error("poison pill: invalid process message", "error", err, "body", string(m.Body))
		return nil
	}

	ctx := context.Background()
	if msg.RequestID != "" {
		ctx = logger.WithRequestID(ctx, msg.RequestID)
	}

	if !c.acquire(msg.DocumentID) {
		slog.InfoContext(ctx, "document already running on this consumer, dropping duplicate delivery",
			"document_id", msg.DocumentID, "attempts", m.Attempts)
		return nil
	}
	defer c.release(msg.DocumentID)

	stop := c.keepAlive(m)
	res := c.processor.ProcessDocument(ctx, msg.DocumentID)
	stop()

	switch {
	case res.Success:
	case errors.Is(res.Err, ingestion_engine.ErrNotClaimed):
		// Another consumer holds the run, or it already finished.
		slog.InfoContext(ctx, "skipped delivery for unclaimed document", "document_id", msg.DocumentID)
	default:
		slog.WarnContext(ctx, "queued processing failed", "document_id", msg.DocumentID, "error", res.Error)
	}
	return nil
}

func (c *Consumer) acquire(documentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[documentID]; busy {
		return false
	}
	c.inFlight[documentID] = struct{}{}
	return true
}

func (c *Consumer) release(documentID string) {
	c.mu.Lock()
	delete(c.inFlight, documentID)
	c.mu.Unlock()
}

// keepAlive touches m until the returned stop is called. stop returns only
// after the last touch, so nothing touches a message that has been answered.
func (c *Consumer) keepAlive(m *nsq.Message) (stop func()) {
	if c.touchEvery <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(c.touchEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				m.Touch()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// Subscribe starts an NSQ consumer on topic/channel with workers concurrent
// handlers, discovered through nsqlookupd.
func Subscribe(topic, channel, lookupd string, workers int, msgTimeout time.Duration, handler nsq.Handler) (*nsq.Consumer, error) {
	cfg := consumerConfig(workers, msgTimeout)

	consumer, err := nsq.NewConsumer(topic, channel, cfg)
	if err != nil {
		return nil, fmt.Errorf("nsq consumer: %w", err)
	}
	consumer.SetLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), nsq.LogLevelWarning)
	consumer.AddConcurrentHandlers(handler, max(workers, 1))

	if err := consumer.ConnectToNSQLookupd(lookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("connect nsqlookupd %s: %w", lookupd, err)
	}
	return consumer, nil
}

// consumerConfig asks nsqd for msgTimeout per message; handlers touch well
// inside it, so only a dead consumer lets a message time out.
func consumerConfig(workers int, msgTimeout time.Duration) *nsq.Config {
	cfg := nsq.NewConfig()
	cfg.MaxInFlight = max(workers, 1)
	if msgTimeout > 0 {
		cfg.MsgTimeout = msgTimeout
	}
	return cfg
}

// TouchInterval is how often a handler touches a message whose timeout is msgTimeout.
func TouchInterval(msgTimeout time.Duration) time.Duration {
	return msgTimeout / 3
}
