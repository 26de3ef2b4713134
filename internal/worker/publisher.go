package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nsqio/go-nsq"

	"github.com/JulioPeixoto/veritas/internal/middleware"
)

var ErrQueueDisabled = errors.New("message queue disabled")

type Publisher interface {
	Publish(topic string, body []byte) error
}

// NoopPublisher stands in when NSQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, []byte) error { return ErrQueueDisabled }

// NSQPublisher wraps a producer so callers depend on Publisher only.
type NSQPublisher struct {
	producer *nsq.Producer
}

func NewNSQPublisher(p *nsq.Producer) *NSQPublisher {
	return &NSQPublisher{producer: p}
}

func (p *NSQPublisher) Publish(topic string, body []byte) error {
	return p.producer.Publish(topic, body)
}

func (p *NSQPublisher) Stop() {
	p.producer.Stop()
}

// PublishETL enqueues an ETL run tagged with the caller's correlation ID.
func PublishETL(ctx context.Context, pub Publisher, topic, filename string) error {
	body, err := json.Marshal(ETLTask{
		Filename:      filename,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return fmt.Errorf("marshal etl task: %w", err)
	}
	return pub.Publish(topic, body)
}
