package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/pkg/metrics"
)

// Collector buffers events and publishes them from a single goroutine so
// request handlers never block on the broker.
type Collector struct {
	producer kafka.Publisher
	eventCh  chan kafka.Event
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
}

func NewCollector(producer kafka.Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan kafka.Event, bufferSize),
		metrics:  m,
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track queues event under key. A full buffer drops the event.
func (c *Collector) Track(key string, event any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.count("dropped")
		return
	}
	select {
	case c.eventCh <- kafka.Event{Key: key, Value: event}:
	default:
		c.count("dropped")
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Publish implements kafka.Publisher so the collector can stand in for a
// producer, e.g. for document events.
func (c *Collector) Publish(_ context.Context, event kafka.Event) error {
	c.Track(event.Key, event.Value)
	return nil
}

// Close stops accepting events and waits for the queue to drain. It must only
// be called after Start and does not close the underlying producer.
func (c *Collector) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.mu.Unlock()
	<-c.done
	return nil
}

func (c *Collector) publish(ctx context.Context, event kafka.Event) {
	if err := c.producer.Publish(ctx, event); err != nil {
		c.count("failed")
		c.logger.Error("failed to publish analytics event", "error", err)
		return
	}
	c.count("published")
}

func (c *Collector) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, event)
		default:
			return
		}
	}
}

func (c *Collector) count(status string) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsTotal.WithLabelValues(status).Inc()
	}
}
