//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/testutils"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

func TestETLTopicRoundTrip(t *testing.T) {
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	done := make(chan struct{})
	runner := new(MockRunner)
	runner.On("RunETL", mock.Anything, "links_teste.csv").Return(1, 1, nil).Run(func(mock.Arguments) {
		close(done)
	})

	consumer, err := nsq.NewConsumer(config.TopicScrapingETL, config.ChannelETLWorker, nsq.NewConfig())
	require.NoError(t, err)
	consumer.AddHandler(worker.NewETLConsumer(runner, time.Minute, nil))
	require.NoError(t, consumer.ConnectToNSQD(s.NSQAddr))
	defer consumer.Stop()

	pub := worker.NewNSQPublisher(s.NSQ)
	require.NoError(t, worker.PublishETL(context.Background(), pub, config.TopicScrapingETL, "links_teste.csv"))

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatal("timeout waiting for etl task")
	}
}
