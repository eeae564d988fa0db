package amqp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"faturas/internal/dataset"
	"faturas/internal/log"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"closed channel", fmt.Errorf("consume: %w", ErrChannelClosed), true},
		{"amqp closed", amqp091.ErrClosed, true},
		{"handler error", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Component: log.ComponentAMQP, Output: &bytes.Buffer{}})
}

func TestSettle(t *testing.T) {
	ok := func(context.Context, *ReloadRequest) error { return nil }
	fail := func(context.Context, *ReloadRequest) error { return errors.New("busy") }

	tests := []struct {
		name    string
		body    []byte
		handler func(context.Context, *ReloadRequest) error
		want    fakeAck
	}{
		{"valid request", []byte(`{"reason":"new files"}`), ok, fakeAck{acked: true}},
		{"empty body", nil, ok, fakeAck{acked: true}},
		{"malformed", []byte(`{`), ok, fakeAck{nacked: true}},
		{"handler error requeues", []byte(`{}`), fail, fakeAck{nacked: true, requeued: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got fakeAck
			settle(context.Background(), quietLogger(), tt.body, &got, tt.handler)
			if got != tt.want {
				t.Fatalf("settle = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	req, err := ReloadRequestFromJSON([]byte(`{"reason":"cron","timestamp":"2024-03-01T10:00:00Z"}`))
	if err != nil || req.Reason != "cron" || req.Timestamp.Year() != 2024 {
		t.Fatalf("unexpected request: %+v %v", req, err)
	}

	report := dataset.LoadReport{Source: "files:data/*.xlsx", FilesRead: 2, Failures: []string{"a", "b"}, RowsKept: 10, RowsDropped: 1}
	body, err := NewReloadedEvent(report).ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ev, err := ReloadedEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventReloaded || ev.Failures != 2 || ev.RowsKept != 10 || ev.Source != report.Source {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestClientWithoutChannel(t *testing.T) {
	c := &Client{logger: quietLogger()}
	if err := c.PublishReloaded(context.Background(), dataset.LoadReport{}); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
	if err := c.ConsumeReloads(context.Background(), nil); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
}

type fakeTopology struct {
	exchanges []string
	declared  []string
	bindings  []string
	durable   bool
	exclusive bool
	autoDel   bool
	next      int
}

func (f *fakeTopology) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.exchanges = append(f.exchanges, name+":"+kind)
	return nil
}

func (f *fakeTopology) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.declared = append(f.declared, name)
	f.durable, f.autoDel, f.exclusive = durable, autoDelete, exclusive
	f.next++
	return amqp091.Queue{Name: fmt.Sprintf("amq.gen-%d", f.next)}, nil
}

func (f *fakeTopology) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	f.bindings = append(f.bindings, exchange+"/"+key+"->"+name)
	return nil
}

func TestBindReloadQueueIsPerConsumer(t *testing.T) {
	// Two servers on the same exchange must each get their own queue.
	first, second := &fakeTopology{}, &fakeTopology{next: 1}
	q1, err := bindReloadQueue(first, "faturas", "dataset.reload")
	if err != nil {
		t.Fatal(err)
	}
	q2, err := bindReloadQueue(second, "faturas", "dataset.reload")
	if err != nil {
		t.Fatal(err)
	}
	if q1 == q2 {
		t.Fatalf("expected distinct queues, both got %q", q1)
	}
	for _, f := range []*fakeTopology{first, second} {
		if len(f.declared) != 1 || f.declared[0] != "" {
			t.Errorf("queue should be server-named, declared %q", f.declared)
		}
		if f.durable || !f.exclusive || !f.autoDel {
			t.Errorf("queue flags durable=%v exclusive=%v autoDelete=%v", f.durable, f.exclusive, f.autoDel)
		}
	}
	if got := first.bindings; len(got) != 1 || got[0] != "faturas/dataset.reload->amq.gen-1" {
		t.Errorf("bindings = %q", got)
	}
	if got := second.bindings; len(got) != 1 || got[0] != "faturas/dataset.reload->amq.gen-2" {
		t.Errorf("bindings = %q", got)
	}
}

func TestDeclareExchangeOnly(t *testing.T) {
	f := &fakeTopology{}
	if err := declareExchange(f, "faturas"); err != nil {
		t.Fatal(err)
	}
	if len(f.exchanges) != 1 || f.exchanges[0] != "faturas:direct" || len(f.declared) != 0 {
		t.Fatalf("exchanges=%q queues=%q", f.exchanges, f.declared)
	}
}
