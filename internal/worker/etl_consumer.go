package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/JulioPeixoto/veritas/internal/middleware"
)

// ETLRunner runs the scraping ETL over one links file.
type ETLRunner interface {
	RunETL(ctx context.Context, filename string) (processed, written int, err error)
}

// DefaultTouchInterval keeps a running message well inside nsqd's default
// 60s message timeout.
const DefaultTouchInterval = 20 * time.Second

type ETLConsumer struct {
	runner  ETLRunner
	timeout time.Duration
	touch   time.Duration
	// permanent reports errors that retrying cannot fix.
	permanent func(error) bool
}

func NewETLConsumer(r ETLRunner, timeout time.Duration, permanent func(error) bool) *ETLConsumer {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if permanent == nil {
		permanent = func(error) bool { return false }
	}
	return &ETLConsumer{runner: r, timeout: timeout, touch: DefaultTouchInterval, permanent: permanent}
}

// WithTouchInterval sets how often an in-flight message is touched.
func (h *ETLConsumer) WithTouchInterval(d time.Duration) *ETLConsumer {
	if d > 0 {
		h.touch = d
	}
	return h
}

// keepAlive touches m until stop is closed so nsqd does not redeliver it
// while the run is still going.
func (h *ETLConsumer) keepAlive(m *nsq.Message, stop <-chan struct{}) {
	if m.Delegate == nil {
		return
	}
	ticker := time.NewTicker(h.touch)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Touch()
		}
	}
}

func (h *ETLConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task ETLTask
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}

	ctx := context.Background()
	if task.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, task.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.keepAlive(m, stop)
	}()
	processed, written, err := h.runner.RunETL(ctx, task.Filename)
	close(stop)
	<-done

	if err != nil {
		if h.permanent(err) || errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "etl task dropped", "filename", task.Filename, "error", err)
			return nil
		}
		slog.ErrorContext(ctx, "etl task failed", "filename", task.Filename, "error", err)
		return err
	}

	slog.InfoContext(ctx, "etl task completed", "filename", task.Filename, "processed", processed, "written", written)
	return nil
}
