// Package events publishes domain events after transcriptions and evaluations.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/ortheloquence/internal/bus"
	"github.com/loqalabs/ortheloquence/internal/config"
)

// Publisher delivers one encoded event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}

// NewPublisher builds the backend named by cfg.Backend. The nats backend needs busClient.
func NewPublisher(cfg config.EventsConfig, busClient *bus.Client, log *slog.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		return logPublisher{log: log}, nil
	case "nats":
		if busClient == nil {
			return nil, errors.New("nats events backend requires a bus connection")
		}
		return NewNATSPublisher(busClient.Conn()), nil
	case "kafka":
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("kafka events backend requires brokers")
		}
		return NewKafkaPublisher(cfg.Brokers), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

type logPublisher struct {
	log *slog.Logger
}

func (p logPublisher) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.log.Debug("event", slog.String("topic", topic), slog.String("key", key), slog.String("payload", string(payload)))
	return nil
}

func (logPublisher) Close() error { return nil }

// Dispatcher encodes events and publishes them in the background so callers
// never wait on the broker. Failures are logged and dropped.
type Dispatcher struct {
	pub     Publisher
	prefix  string
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(pub Publisher, prefix string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		pub:     pub,
		prefix:  prefix,
		timeout: 10 * time.Second,
		log:     log.With(slog.String("component", "events")),
	}
}

// Topic returns the subject or topic name for event.
func (d *Dispatcher) Topic(event string) string {
	if d.prefix == "" {
		return event
	}
	return d.prefix + "." + event
}

// Send publishes payload as JSON under event. A nil Dispatcher discards the event.
func (d *Dispatcher) Send(event, key string, payload any) {
	if d == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Warn("failed to encode event", slog.String("event", event), slogError(err))
		return
	}
	topic := d.Topic(event)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.pub.Publish(ctx, topic, key, data); err != nil {
			d.log.Warn("failed to publish event", slog.String("topic", topic), slogError(err))
		}
	}()
}

// Close waits for in-flight events, then closes the publisher.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.wg.Wait()
	return d.pub.Close()
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
