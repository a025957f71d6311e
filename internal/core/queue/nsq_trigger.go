package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"

	"github.com/markdave123-py/flowdesk/internal/core"
	"github.com/markdave123-py/flowdesk/internal/logger"
)

// ProcessMessage is the body published for every processing request.
type ProcessMessage struct {
	DocumentID string `json:"document_id"`
	RequestID  string `json:"request_id,omitempty"`
}

// Publisher is satisfied by *nsq.Producer.
type Publisher interface {
	Publish(topic string, body []byte) error
}

var _ core.ProcessingTrigger = (*NSQTrigger)(nil)

// NSQTrigger hands documents to whichever process consumes the topic.
type NSQTrigger struct {
	producer Publisher
	topic    string
}

func NewNSQTrigger(producer Publisher, topic string) *NSQTrigger {
	return &NSQTrigger{producer: producer, topic: topic}
}

// NewProducer connects to nsqd and checks the connection.
func NewProducer(nsqdHost string) (*nsq.Producer, error) {
	p, err := nsq.NewProducer(nsqdHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer: %w", err)
	}
	if err := p.Ping(); err != nil {
		p.Stop()
		return nil, fmt.Errorf("nsq ping %s: %w", nsqdHost, err)
	}
	return p, nil
}

func (t *NSQTrigger) Trigger(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ProcessMessage{DocumentID: documentID, RequestID: logger.RequestID(ctx)})
	if err != nil {
		return err
	}
	if err := t.producer.Publish(t.topic, body); err != nil {
		return fmt.Errorf("publish %s: %w", t.topic, err)
	}
	return nil
}
