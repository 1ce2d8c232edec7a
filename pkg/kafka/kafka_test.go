package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	topic string
	calls int
	errs  []error
}

func (h *recordingHandler) Topic() string { return h.topic }

func (h *recordingHandler) Handle(context.Context, []byte) error {
	h.calls++
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer(WithConsumerGroupID("g"))
	assert.ErrorIs(t, err, errNoBrokers)
}

func TestNewConsumer_Defaults(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerGroupID(""),
		WithConsumerWorkers(3),
		WithConsumerRetry(1, time.Second, time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, "marketgate", c.cfg.GroupID)
	assert.Equal(t, "latest", c.cfg.StartOffset)
	assert.Equal(t, 12, cap(c.msgChan))
	assert.Equal(t, time.Second, c.cfg.BackoffMax)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	b, err = encodeValue("text")
	require.NoError(t, err)
	assert.Equal(t, "text", string(b))

	b, err = encodeValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Zstd, parseCompression("zstd"))
	assert.Equal(t, kafka.Compression(0), parseCompression("none"))
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, max)
	}
	// first attempt stays within [min/2, min]
	d := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, d, min/2)
	assert.LessOrEqual(t, d, min)
}

func TestConsumer_RegisterHandlerOnce(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)

	first := &recordingHandler{topic: "prefetch"}
	c.RegisterHandler(first)
	c.RegisterHandler(&recordingHandler{topic: "prefetch"})
	assert.Same(t, first, c.handlers["prefetch"])
}

func TestConsumer_HandleWithRetry(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)

	var after []error
	c.WithConsumerHook(HookFuncs{
		After: func(_ context.Context, _ string, _ kafka.Message, err error) { after = append(after, err) },
	})

	boom := errors.New("boom")
	h := &recordingHandler{topic: "t", errs: []error{boom, boom}}
	attempts, err := c.handleWithRetry(h, &message{topic: "t"})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []error{boom, boom, nil}, after)

	h = &recordingHandler{topic: "t", errs: []error{boom, boom, boom, boom}}
	attempts, err = c.handleWithRetry(h, &message{topic: "t"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

type panicHandler struct{}

func (panicHandler) Topic() string { return "p" }

func (panicHandler) Handle(context.Context, []byte) error { panic("bad payload") }

func TestConsumer_HandlerPanicBecomesError(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)

	err = c.handleOnce(panicHandler{}, &message{topic: "p"})
	assert.ErrorContains(t, err, "bad payload")
}

func TestConsumer_BeforeHookSkipsHandler(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	veto := errors.New("veto")
	c.WithConsumerHook(HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) { return ctx, veto },
	})

	h := &recordingHandler{topic: "t"}
	assert.ErrorIs(t, c.handleOnce(h, &message{topic: "t"}), veto)
	assert.Zero(t, h.calls)
}

func TestConsumer_StartWithoutHandlers(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	assert.Error(t, c.Start())
}
