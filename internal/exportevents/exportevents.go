// Package exportevents publishes export job notifications to Kafka.
package exportevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/observability"
)

const (
	KindImage = "image"
	KindTable = "table"
)

type Event struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	TaskID      string    `json:"task_id"`
	Description string    `json:"description"`
	Folder      string    `json:"folder"`
	Strategy    string    `json:"strategy,omitempty"`
	Areas       []string  `json:"areas,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	Cells       []string  `json:"h3_cells,omitempty"`
	H3Res       int       `json:"h3_res,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	TS          time.Time `json:"ts"`
}

// Sink receives events; Publish must not block.
type Sink interface {
	Publish(ev Event)
}

type Publisher struct {
	topic   string
	log     *slog.Logger
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errsRun chan struct{}

	mu     sync.RWMutex
	closed bool
}

var _ Sink = (*Publisher)(nil)

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("exportevents: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, log), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errsRun: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				observability.IncExportEvent("error")
				p.log.Error("exportevents: marshal", "task_id", ev.TaskID, "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.TaskID),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncExportEvent("sent")
		}
	}()

	go func() {
		defer close(p.errsRun)
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncExportEvent("error")
				p.log.Warn("exportevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev; a full queue drops it so the request path never waits
// on Kafka. After Close, events are dropped.
func (p *Publisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncExportEvent("dropped")
		p.log.Warn("exportevents: publisher closed, dropping event", "task_id", ev.TaskID)
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.IncExportEvent("dropped")
		p.log.Warn("exportevents: queue full, dropping event", "task_id", ev.TaskID)
	}
}

// Close drains the queue and closes the producer. It is safe to call more
// than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	err := p.prod.Close()
	<-p.errsRun
	if err != nil {
		return fmt.Errorf("exportevents: close producer: %w", err)
	}
	return nil
}

// Discard is the Sink used when export events are disabled.
type Discard struct{}

func (Discard) Publish(Event) {}
