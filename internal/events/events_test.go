package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/mohammed-shakir/geoview/internal/core/model"
	"github.com/mohammed-shakir/geoview/internal/query"
)

func TestFromResult(t *testing.T) {
	r := query.Result{
		Kind:     query.KindBox,
		Additive: true,
		Features: []*model.Feature{{}, {}},
		Selected: 5,
		Layers: []query.LayerOutcome{
			{Layer: "roads", Features: 2},
			{Layer: "parcels", Features: 0, Err: "timeout"},
		},
	}
	ev := FromResult("s1", r)
	if ev.Session != "s1" || ev.Kind != "box" || !ev.Additive || ev.Count != 2 || ev.Selected != 5 {
		t.Fatalf("event=%+v", ev)
	}
	if len(ev.Layers) != 1 || ev.Layers[0] != "roads" {
		t.Fatalf("layers=%v", ev.Layers)
	}
	if len(ev.Failed) != 1 || ev.Failed[0] != "parcels" {
		t.Fatalf("failed=%v", ev.Failed)
	}
	if ev.TS.IsZero() {
		t.Fatal("timestamp missing")
	}
}

func TestPublisher_SendsJSONKeyedBySession(t *testing.T) {
	cfg := mocks.NewTestConfig()
	prod := mocks.NewAsyncProducer(t, cfg)
	prod.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev SelectionEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Session != "abc" || !ev.Cleared || ev.Kind != "clear" {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})

	p := newWithProducer(prod, "", 4, slog.New(slog.DiscardHandler))
	if p.topic != DefaultTopic {
		t.Fatalf("topic=%q", p.topic)
	}
	p.Observer()("abc", query.Result{Kind: query.KindClear, Seq: 1, Cleared: true, Applied: true})

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublisher_ProducerErrorIsNotFatal(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	prod.ExpectInputAndFail(sarama.ErrOutOfBrokers)
	prod.ExpectInputAndSucceed()

	p := newWithProducer(prod, "t", 4, slog.New(slog.DiscardHandler))
	p.Publish(SelectionEvent{Session: "a"})
	p.Publish(SelectionEvent{Session: "b"})
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMessage_KeyHeadersAndTimestamp(t *testing.T) {
	p := &Publisher{topic: "sel"}
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := p.message(SelectionEvent{Session: "s9", Kind: "click", TS: ts})
	if err != nil {
		t.Fatal(err)
	}
	key, _ := msg.Key.Encode()
	if msg.Topic != "sel" || string(key) != "s9" || !msg.Timestamp.Equal(ts) {
		t.Fatalf("msg=%+v", msg)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	if headers["content-type"] != "application/json" || headers["event-schema"] != SchemaVersion {
		t.Fatalf("headers=%v", headers)
	}
}

func TestNewPublisher_RequiresBrokers(t *testing.T) {
	if _, err := NewPublisher(nil, "", 0, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}
