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

type recordingHook struct {
	name  string
	calls *[]string
	fail  error
	boom  bool
}

func (h recordingHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	*h.calls = append(*h.calls, "before:"+h.name)
	if h.boom {
		panic("boom")
	}
	return ctx, km, append(data, h.name...), h.fail
}

func (h recordingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	*h.calls = append(*h.calls, "after:"+h.name)
}

func (h recordingHook) OnError(context.Context, string, kafka.Message, []byte, error) {
	*h.calls = append(*h.calls, "error:"+h.name)
}

func TestHookChainOrder(t *testing.T) {
	var calls []string
	chain := NewHookChain(recordingHook{name: "a", calls: &calls}, nil, recordingHook{name: "b", calls: &calls})

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "xab", string(data))

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, calls)
}

func TestHookChainStopsOnError(t *testing.T) {
	var calls []string
	want := errors.New("invalid")
	chain := NewHookChain(recordingHook{name: "a", calls: &calls, fail: want}, recordingHook{name: "b", calls: &calls})

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	assert.ErrorIs(t, err, want)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, []string{"before:a"}, calls)
}

func TestHookChainRecoversPanic(t *testing.T) {
	var calls []string
	chain := NewHookChain(recordingHook{name: "a", calls: &calls, boom: true})

	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.LessOrEqual(t, d, max)
		assert.Greater(t, d, time.Duration(0))
	}
	first := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, first, min/2)
	assert.LessOrEqual(t, first, min)
}
