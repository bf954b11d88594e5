// Package events publishes selection changes to Kafka so downstream consumers
// (audit, analytics) can follow what users pick on the map.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/query"
)

const (
	DefaultTopic = "selection-events"
	// SchemaVersion is sent in the event-schema header.
	SchemaVersion = "1"
)

type SelectionEvent struct {
	Session  string    `json:"session"`
	Kind     string    `json:"kind,omitempty"`
	Additive bool      `json:"additive"`
	Count    int       `json:"count"`
	Selected int       `json:"selected"`
	Layers   []string  `json:"layers,omitempty"`
	Failed   []string  `json:"failed,omitempty"`
	Cleared  bool      `json:"cleared"`
	TS       time.Time `json:"ts"`
}

// FromResult summarizes an applied interaction. Layers lists the layers that
// returned at least one feature and Failed the ones whose query errored, both
// in draw order.
func FromResult(session string, r query.Result) SelectionEvent {
	ev := SelectionEvent{
		Session:  session,
		Kind:     string(r.Kind),
		Additive: r.Additive,
		Count:    len(r.Features),
		Selected: r.Selected,
		Cleared:  r.Cleared,
		TS:       time.Now().UTC(),
	}
	for _, l := range r.Layers {
		switch {
		case l.Err != "":
			ev.Failed = append(ev.Failed, l.Layer)
		case l.Features > 0:
			ev.Layers = append(ev.Layers, l.Layer)
		}
	}
	return ev
}

// Publisher decouples request handling from Kafka: Publish never blocks, a
// single goroutine feeds the async producer.
type Publisher struct {
	topic   string
	log     *slog.Logger
	queue   chan SelectionEvent
	prod    sarama.AsyncProducer
	drained chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: no brokers configured")
	}
	cfg := sarama.NewConfig()
	cfg.ClientID = "geoviewd"
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionZSTD
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = true

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return newWithProducer(prod, topic, queueSize, log), nil
}

func newWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		log:     log.With("component", "events"),
		queue:   make(chan SelectionEvent, queueSize),
		prod:    prod,
		drained: make(chan struct{}),
	}
	go p.feed()
	go p.acks()
	return p
}

func (p *Publisher) feed() {
	defer close(p.drained)
	for ev := range p.queue {
		msg, err := p.message(ev)
		if err != nil {
			p.log.Warn("encode selection event", "session", ev.Session, "err", err)
			observability.IncSelectionEvent("failed")
			continue
		}
		p.prod.Input() <- msg
	}
}

func (p *Publisher) message(ev SelectionEvent) (*sarama.ProducerMessage, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(ev.Session),
		Value:     sarama.ByteEncoder(b),
		Timestamp: ev.TS,
		Headers: []sarama.RecordHeader{
			{Key: []byte("content-type"), Value: []byte("application/json")},
			{Key: []byte("event-schema"), Value: []byte(SchemaVersion)},
		},
	}, nil
}

// acks drains both producer result channels until Close shuts the producer.
func (p *Publisher) acks() {
	succ, errs := p.prod.Successes(), p.prod.Errors()
	for succ != nil || errs != nil {
		select {
		case _, ok := <-succ:
			if !ok {
				succ = nil
				continue
			}
			observability.IncSelectionEvent("sent")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			observability.IncSelectionEvent("failed")
			p.log.Warn("producer error", "err", err)
		}
	}
}

// Publish enqueues ev; a full queue drops it.
func (p *Publisher) Publish(ev SelectionEvent) {
	select {
	case p.queue <- ev:
		observability.IncSelectionEvent("queued")
	default:
		observability.IncSelectionEvent("dropped")
		p.log.Debug("selection event dropped", "session", ev.Session)
	}
}

// Observer adapts p to the session store's observer hook.
func (p *Publisher) Observer() func(string, query.Result) {
	return func(session string, r query.Result) {
		p.Publish(FromResult(session, r))
	}
}

// Close flushes queued events and closes the producer. Publish must not be
// called afterwards.
func (p *Publisher) Close() error {
	close(p.queue)
	<-p.drained
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("events: close producer: %w", err)
	}
	return nil
}
