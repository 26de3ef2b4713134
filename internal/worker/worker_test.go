package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

type MockRunner struct{ mock.Mock }

func (m *MockRunner) RunETL(ctx context.Context, filename string) (int, int, error) {
	args := m.Called(ctx, filename)
	return args.Int(0), args.Int(1), args.Error(2)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

var errNotFound = errors.New("arquivo não encontrado")

func isPermanent(err error) bool { return errors.Is(err, errNotFound) }

func TestETLConsumer_RunsTask(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunETL", mock.MatchedBy(func(ctx context.Context) bool {
		return middleware.GetCorrelationID(ctx) == "corr-1"
	}), "links_chuva.csv").Return(3, 2, nil)

	h := worker.NewETLConsumer(runner, 0, isPermanent)
	body, _ := json.Marshal(worker.ETLTask{Filename: "links_chuva.csv", CorrelationID: "corr-1"})

	require.NoError(t, h.HandleMessage(&nsq.Message{Body: body}))
	runner.AssertExpectations(t)
}

func TestETLConsumer_PoisonPills(t *testing.T) {
	runner := new(MockRunner)
	h := worker.NewETLConsumer(runner, 0, isPermanent)

	assert.NoError(t, h.HandleMessage(&nsq.Message{Body: nil}))
	assert.NoError(t, h.HandleMessage(&nsq.Message{Body: []byte("{not json")}))
	runner.AssertNotCalled(t, "RunETL", mock.Anything, mock.Anything)
}

func TestETLConsumer_PermanentErrorIsAcked(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunETL", mock.Anything, "sumiu.csv").Return(0, 0, errNotFound)

	h := worker.NewETLConsumer(runner, 0, isPermanent)
	body, _ := json.Marshal(worker.ETLTask{Filename: "sumiu.csv"})
	assert.NoError(t, h.HandleMessage(&nsq.Message{Body: body}))
}

func TestETLConsumer_TransientErrorRequeues(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunETL", mock.Anything, "links.csv").Return(0, 0, errors.New("disk full"))

	h := worker.NewETLConsumer(runner, 0, isPermanent)
	body, _ := json.Marshal(worker.ETLTask{Filename: "links.csv"})
	assert.Error(t, h.HandleMessage(&nsq.Message{Body: body}))
}

type countingDelegate struct {
	touches int32
}

func (d *countingDelegate) OnFinish(*nsq.Message)                       {}
func (d *countingDelegate) OnRequeue(*nsq.Message, time.Duration, bool) {}
func (d *countingDelegate) OnTouch(*nsq.Message)                        { atomic.AddInt32(&d.touches, 1) }

func TestETLConsumer_TouchesMessageDuringSlowRun(t *testing.T) {
	runner := new(MockRunner)
	runner.On("RunETL", mock.Anything, "links_lento.csv").Return(5, 5, nil).
		Run(func(mock.Arguments) { time.Sleep(120 * time.Millisecond) })

	h := worker.NewETLConsumer(runner, 0, isPermanent).WithTouchInterval(20 * time.Millisecond)
	body, _ := json.Marshal(worker.ETLTask{Filename: "links_lento.csv"})
	delegate := &countingDelegate{}
	msg := nsq.NewMessage(nsq.MessageID{}, body)
	msg.Delegate = delegate

	require.NoError(t, h.HandleMessage(msg))
	touches := atomic.LoadInt32(&delegate.touches)
	assert.GreaterOrEqual(t, touches, int32(2))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, touches, atomic.LoadInt32(&delegate.touches), "no touches after the run returns")
}

func TestPublishETL(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", "veritas.scraping.etl", mock.MatchedBy(func(b []byte) bool {
		var task worker.ETLTask
		return json.Unmarshal(b, &task) == nil && task.Filename == "links.csv" && task.CorrelationID == "abc"
	})).Return(nil)

	ctx := middleware.WithCorrelationID(context.Background(), "abc")
	require.NoError(t, worker.PublishETL(ctx, pub, "veritas.scraping.etl", "links.csv"))
	pub.AssertExpectations(t)
}

func TestNoopPublisher(t *testing.T) {
	err := worker.PublishETL(context.Background(), worker.NoopPublisher{}, "t", "f.csv")
	assert.ErrorIs(t, err, worker.ErrQueueDisabled)
}
