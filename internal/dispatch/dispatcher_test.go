package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"signalwatch/internal/signal"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var event = signal.AlertEvent{
	Subscriber:     "42",
	Symbol:         "EURUSD",
	Classification: signal.StrongSell,
	Venue:          "FOREXCOM",
	Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

type funcChannel struct {
	name string
	fn   func(ctx context.Context, ev signal.AlertEvent, msg string) error

	mu   sync.Mutex
	seen []string
}

func (c *funcChannel) Name() string { return c.name }

func (c *funcChannel) Send(ctx context.Context, ev signal.AlertEvent, msg string) error {
	c.mu.Lock()
	c.seen = append(c.seen, msg)
	c.mu.Unlock()
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, ev, msg)
}

func (c *funcChannel) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

// go test -v --run TestRender
func TestRender(t *testing.T) {
	assert.Equal(t, "🚨 EURUSD Alert: STRONG_SELL on FOREXCOM!", Render(event))
}

// go test -v --run TestSendIsolatesFailures
func TestSendIsolatesFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	failing := &funcChannel{name: "a", fn: func(context.Context, signal.AlertEvent, string) error {
		return errors.New("provider down")
	}}
	panicking := &funcChannel{name: "b", fn: func(context.Context, signal.AlertEvent, string) error {
		panic("boom")
	}}
	ok := &funcChannel{name: "c"}

	d := New([]Channel{failing, panicking, ok}, WithLogger(zap.New(core)))
	outcomes := d.Send(context.Background(), event)

	require.Len(t, outcomes, 3)
	assert.Equal(t, "a", outcomes[0].Channel)
	assert.EqualError(t, outcomes[0].Err, "provider down")
	assert.Equal(t, "b", outcomes[1].Channel)
	assert.ErrorContains(t, outcomes[1].Err, "panicked")
	assert.Equal(t, "c", outcomes[2].Channel)
	assert.NoError(t, outcomes[2].Err)
	assert.True(t, Delivered(outcomes))

	assert.Equal(t, []string{Render(event)}, ok.messages())
	assert.Equal(t, 2, logs.FilterMessage("alert channel failed").Len())
	assert.Equal(t, []string{"a", "b", "c"}, d.Channels())
}

// go test -v --run TestSendChannelTimeout
func TestSendChannelTimeout(t *testing.T) {
	stuck := &funcChannel{name: "stuck", fn: func(ctx context.Context, _ signal.AlertEvent, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	fast := &funcChannel{name: "fast"}

	d := New([]Channel{stuck, fast}, WithChannelTimeout(20*time.Millisecond))

	start := time.Now()
	outcomes := d.Send(context.Background(), event)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
	assert.NoError(t, outcomes[1].Err)
}

// go test -v --run TestSendChannelsRunConcurrently
func TestSendChannelsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)

	blocking := func(ctx context.Context, _ signal.AlertEvent, _ string) error {
		started.Done()
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d := New([]Channel{
		&funcChannel{name: "x", fn: blocking},
		&funcChannel{name: "y", fn: blocking},
	}, WithChannelTimeout(5*time.Second))

	go func() {
		// both channels must be inside Send at the same time
		started.Wait()
		close(release)
	}()

	outcomes := d.Send(context.Background(), event)
	assert.True(t, Delivered(outcomes))
	assert.NoError(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err)
}

// go test -v --run TestDeliveredNone
func TestDeliveredNone(t *testing.T) {
	assert.False(t, Delivered(nil))
	assert.False(t, Delivered([]Outcome{{Channel: "a", Err: errors.New("x")}}))
	assert.Empty(t, New(nil).Send(context.Background(), event))
}

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]bool
}

func (o *recordingObserver) ChannelSent(ch string, ok bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[ch] = ok
}

// go test -v --run TestSendObserver
func TestSendObserver(t *testing.T) {
	obs := &recordingObserver{calls: map[string]bool{}}
	d := New([]Channel{
		&funcChannel{name: "ok"},
		&funcChannel{name: "bad", fn: func(context.Context, signal.AlertEvent, string) error { return errors.New("x") }},
	}, WithObserver(obs))

	d.Send(context.Background(), event)
	assert.Equal(t, map[string]bool{"ok": true, "bad": false}, obs.calls)
}

type fakeChat struct {
	chatID, text string
	err          error
}

func (f *fakeChat) SendMessage(_ context.Context, chatID, text string) error {
	f.chatID, f.text = chatID, text
	return f.err
}

// go test -v --run TestChatChannel
func TestChatChannel(t *testing.T) {
	chat := &fakeChat{}
	ch := NewChatChannel(chat)

	require.NoError(t, ch.Send(context.Background(), event, "msg"))
	assert.Equal(t, "chat", ch.Name())
	assert.Equal(t, "42", chat.chatID)
	assert.Equal(t, "msg", chat.text)
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (f *fakeSMS) SendSMS(_ context.Context, to, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	if f.fail[to] {
		return "", errors.New("undeliverable")
	}
	return "SM" + to, nil
}

// go test -v --run TestSMSChannel
func TestSMSChannel(t *testing.T) {
	sms := &fakeSMS{fail: map[string]bool{"+1": true}}
	ch := NewSMSChannel(sms, []string{"+1", "+2"})

	err := ch.Send(context.Background(), event, "msg")
	assert.ErrorContains(t, err, "sms to +1")
	assert.Equal(t, []string{"+1", "+2"}, sms.sent, "a failed number does not stop the next")

	sms.fail = nil
	assert.NoError(t, ch.Send(context.Background(), event, "msg"))
}

// go test -v --run TestSMSChannelWithoutNumbers
func TestSMSChannelWithoutNumbers(t *testing.T) {
	sms := &fakeSMS{}
	d := New([]Channel{NewSMSChannel(sms, nil)})

	outcomes := d.Send(context.Background(), event)
	assert.ErrorIs(t, outcomes[0].Err, ErrNoRecipients)
	assert.False(t, Delivered(outcomes))
	assert.Empty(t, sms.sent)
}

type fakePublisher struct {
	got any
}

func (f *fakePublisher) Publish(_ context.Context, v any) error {
	f.got = v
	return nil
}

// go test -v --run TestRelayChannel
func TestRelayChannel(t *testing.T) {
	pub := &fakePublisher{}
	ch := NewRelayChannel(pub)
	require.NoError(t, ch.Send(context.Background(), event, "msg"))

	payload, ok := pub.got.(Payload)
	require.True(t, ok)
	assert.Equal(t, event, payload.AlertEvent)
	assert.Equal(t, "msg", payload.Message)
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

// go test -v --run TestKafkaChannel
func TestKafkaChannel(t *testing.T) {
	w := &fakeWriter{}
	ch := NewKafkaChannel(w)
	require.NoError(t, ch.Send(context.Background(), event, "msg"))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("42"), w.msgs[0].Key)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &body))
	assert.Equal(t, "EURUSD", body["symbol"])
	assert.Equal(t, "STRONG_SELL", body["classification"])
	assert.Equal(t, "FOREXCOM", body["venue"])
	assert.Equal(t, "msg", body["message"])

	writer := NewKafkaWriter([]string{"localhost:9092"}, "alerts")
	assert.Equal(t, "alerts", writer.Topic)
}

// go test -v --run TestLogChannel
func TestLogChannel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ch := NewLogChannel(zap.New(core))

	require.NoError(t, ch.Send(context.Background(), event, Render(event)))
	entries := logs.FilterMessage(Render(event)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "EURUSD", entries[0].ContextMap()["symbol"])
}
