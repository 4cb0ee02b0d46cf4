package channel

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/infrastructure/loopback"
	"github.com/aardvark-ui/bridge/internal/testutil"
)

func newTestChannel(t *testing.T, eng *loopback.Engine, name string, opts ...Option) (*BinaryChannel, *testutil.LogRecorder) {
	t.Helper()
	logger, rec := testutil.NewLogger()
	ch, err := Create(context.Background(), eng, name, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return ch, rec
}

func TestCreate_AllocatesCounterpart(t *testing.T) {
	eng := loopback.New()
	ch, _ := newTestChannel(t, eng, "system")

	assert.Equal(t, "system", ch.Name())
	assert.True(t, ch.Handle().Valid())
	assert.Same(t, ch, ch.Binary())
	assert.Equal(t, 1, eng.LiveChannels("system"))
	assert.Equal(t, []string{"create_channel:system"}, eng.Calls())
}

func TestCreate_Failures(t *testing.T) {
	boom := stdErrors.New("out of channel slots")

	tests := []struct {
		engine *loopback.Engine
		name   string
		chName string
	}{
		{name: "engine failure", engine: loopback.New(loopback.WithFailure(loopback.OpCreateChannel, boom)), chName: "system"},
		{name: "per channel failure", engine: loopback.New(loopback.WithFailure("create_channel:timers", boom)), chName: "timers"},
		{name: "empty name", engine: loopback.New(), chName: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := Create(context.Background(), tt.engine, tt.chName)
			require.Error(t, err)
			assert.Nil(t, ch)

			var cce *errors.ChannelCreationError
			require.ErrorAs(t, err, &cce)
			assert.Equal(t, tt.chName, cce.Channel)
		})
	}

	t.Run("nil engine", func(t *testing.T) {
		_, err := Create(context.Background(), nil, "system")
		var cce *errors.ChannelCreationError
		require.ErrorAs(t, err, &cce)
	})
}

func TestCreate_SameNameTwiceYieldsIndependentPairs(t *testing.T) {
	eng := loopback.New()
	first, _ := newTestChannel(t, eng, "system")
	second, _ := newTestChannel(t, eng, "system")

	assert.NotEqual(t, first.Handle(), second.Handle())
	assert.Equal(t, 2, eng.LiveChannels("system"))

	require.NoError(t, first.Release(context.Background()))
	assert.Equal(t, 1, eng.LiveChannels("system"))
	require.NoError(t, second.Send(context.Background(), NewBinaryBuffer([]byte("still works"))))
}

func TestSend_DeliversUnreadBytes(t *testing.T) {
	eng := loopback.New()
	ch, _ := newTestChannel(t, eng, "system")

	buf := NewBinaryBuffer([]byte("skip:data"))
	buf.Next(5)
	require.NoError(t, ch.Send(context.Background(), buf))
	require.NoError(t, ch.Send(context.Background(), NewBinaryBuffer([]byte("second"))))

	testutil.AssertPayloads(t, []string{"data", "second"}, eng.Received("system"))
}

func TestSend_EngineRejection(t *testing.T) {
	boom := stdErrors.New("engine busy")
	eng := loopback.New(loopback.WithFailure(loopback.OpDeliverMessage, boom))
	ch, rec := newTestChannel(t, eng, "system")

	err := ch.Send(context.Background(), NewBinaryBuffer([]byte("x")))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var ee *errors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "deliver_message", ee.Operation)
	assert.Equal(t, 1, rec.Count("engine rejected message"))
}

func TestOnNativeMessage_InlineDelivery(t *testing.T) {
	eng := loopback.New(loopback.WithEcho(true))
	var got []string
	ch, _ := newTestChannel(t, eng, "system", WithHandler(func(ctx context.Context, buf *BinaryBuffer) {
		got = append(got, string(buf.Bytes()))
	}))

	require.NoError(t, ch.Send(context.Background(), NewBinaryBuffer([]byte("ping"))))
	assert.Equal(t, []string{"ping"}, got)
}

func TestOnNativeMessage_NoHandlerIsDiscardedAndLogged(t *testing.T) {
	eng := loopback.New()
	_, rec := newTestChannel(t, eng, "system")

	require.NoError(t, eng.Emit("system", []byte("nobody listens")))

	records := rec.Find("no handler, message discarded")
	require.Len(t, records, 1)
	assert.Equal(t, "system", records[0].Attrs["channel"])
}

func TestOnNativeMessage_CopiesEngineBytes(t *testing.T) {
	eng := loopback.New()
	d := NewDispatcher()
	var got string
	_, _ = newTestChannel(t, eng, "system", WithDispatcher(d), WithHandler(func(ctx context.Context, buf *BinaryBuffer) {
		got = string(buf.Bytes())
	}))

	data := []byte("abc")
	require.NoError(t, eng.Emit("system", data))
	data[0] = 'z'

	d.Drain(context.Background(), 0)
	assert.Equal(t, "abc", got)
}

func TestOnNativeMessage_HandlersRunOnlyOnDrain(t *testing.T) {
	eng := loopback.New()
	d := NewDispatcher()
	var got []string
	var seqs []uint64
	_, _ = newTestChannel(t, eng, "system", WithDispatcher(d), WithHandler(func(ctx context.Context, buf *BinaryBuffer) {
		got = append(got, buf.String())
		dc, ok := DeliveryFrom(ctx)
		require.True(t, ok)
		assert.Equal(t, "system", dc.Channel())
		seqs = append(seqs, dc.Seq())
	}))

	require.NoError(t, eng.Emit("system", []byte("m1")))
	require.NoError(t, eng.Emit("system", []byte("m2")))
	assert.Empty(t, got)
	assert.Equal(t, 2, d.Len())

	assert.Equal(t, 2, d.Drain(context.Background(), 0))
	assert.Equal(t, []string{"m1", "m2"}, got)
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestSetHandler_ReplacementDeliversToExactlyOneHandler(t *testing.T) {
	eng := loopback.New()
	ch, _ := newTestChannel(t, eng, "system")

	var first, second []string
	ch.SetHandler(func(ctx context.Context, buf *BinaryBuffer) { first = append(first, buf.String()) })
	require.NoError(t, eng.Emit("system", []byte("m1")))

	ch.SetHandler(func(ctx context.Context, buf *BinaryBuffer) { second = append(second, buf.String()) })
	require.NoError(t, eng.Emit("system", []byte("m2")))

	assert.Equal(t, []string{"m1"}, first)
	assert.Equal(t, []string{"m2"}, second)
}

func TestHandlerPanic_DoesNotAffectLaterMessages(t *testing.T) {
	eng := loopback.New()
	var got []string
	_, rec := newTestChannel(t, eng, "system", WithHandler(func(ctx context.Context, buf *BinaryBuffer) {
		if buf.String() == "bad" {
			panic("handler failure")
		}
		got = append(got, buf.String())
	}))

	assert.NotPanics(t, func() {
		require.NoError(t, eng.Emit("system", []byte("bad")))
	})
	require.NoError(t, eng.Emit("system", []byte("good")))

	assert.Equal(t, []string{"good"}, got)
	assert.Equal(t, 1, rec.Count("channel handler panicked"))
}

func TestMiddleware_Order(t *testing.T) {
	eng := loopback.New()
	var order []string
	mw := func(tag string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, buf *BinaryBuffer) {
				order = append(order, tag+"-before")
				next(ctx, buf)
				order = append(order, tag+"-after")
			}
		}
	}
	_, _ = newTestChannel(t, eng, "system",
		WithMiddleware(mw("mw1"), mw("mw2")),
		WithHandler(func(ctx context.Context, buf *BinaryBuffer) { order = append(order, "handler") }),
	)

	require.NoError(t, eng.Emit("system", []byte("x")))
	assert.Equal(t, []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}, order)
}

type traceKey struct{}

func TestDeliveryFrom_DerivedContext(t *testing.T) {
	eng := loopback.New()
	logger, rec := testutil.NewLogger()
	tracing := func(next Handler) Handler {
		return func(ctx context.Context, buf *BinaryBuffer) {
			next(context.WithValue(ctx, traceKey{}, "t-1"), buf)
		}
	}

	var channels []string
	var seqs []uint64
	_, _ = newTestChannel(t, eng, "system",
		WithMiddleware(tracing, LoggingMiddleware(logger)),
		WithHandler(func(ctx context.Context, buf *BinaryBuffer) {
			dc, ok := DeliveryFrom(ctx)
			require.True(t, ok)
			channels = append(channels, dc.Channel())
			seqs = append(seqs, dc.Seq())
			assert.Equal(t, "t-1", dc.Value(traceKey{}))
		}),
	)

	require.NoError(t, eng.Emit("system", []byte("a")))
	require.NoError(t, eng.Emit("system", []byte("b")))

	assert.Equal(t, []string{"system", "system"}, channels)
	assert.Equal(t, []uint64{1, 2}, seqs)

	records := rec.Find("message delivered")
	require.Len(t, records, 2)
	assert.Equal(t, "system", records[1].Attrs["channel"])
	assert.EqualValues(t, 2, records[1].Attrs["seq"])

	_, ok := DeliveryFrom(context.WithValue(context.Background(), traceKey{}, "t-2"))
	assert.False(t, ok)
}

func TestLoggingMiddleware(t *testing.T) {
	eng := loopback.New()
	logger, rec := testutil.NewLogger()
	_, _ = newTestChannel(t, eng, "system",
		WithMiddleware(LoggingMiddleware(logger)),
		WithHandler(func(ctx context.Context, buf *BinaryBuffer) {}),
	)

	require.NoError(t, eng.Emit("system", []byte("12345")))

	records := rec.Find("message delivered")
	require.Len(t, records, 1)
	assert.Equal(t, "system", records[0].Attrs["channel"])
	assert.EqualValues(t, 5, records[0].Attrs["size"])
}

func TestPost_SendsOnOwnerGoroutine(t *testing.T) {
	eng := loopback.New()
	d := NewDispatcher()
	ch, _ := newTestChannel(t, eng, "system", WithDispatcher(d))

	require.NoError(t, ch.Post([]byte("later")))
	assert.Empty(t, eng.Received("system"))

	d.Drain(context.Background(), 0)
	testutil.AssertPayloads(t, []string{"later"}, eng.Received("system"))
}

func TestPost_AfterDispatcherClosed(t *testing.T) {
	eng := loopback.New()
	d := NewDispatcher()
	ch, rec := newTestChannel(t, eng, "system", WithDispatcher(d))
	d.Close()

	err := ch.Post([]byte("late"))
	assert.ErrorIs(t, err, errors.ErrDispatcherClosed)
	assert.Equal(t, 1, rec.Count("outbound message dropped"))

	require.NoError(t, eng.Emit("system", []byte("inbound")))
	assert.Equal(t, 1, rec.Count("inbound message dropped"))
}

func TestRelease(t *testing.T) {
	eng := loopback.New()
	ch, rec := newTestChannel(t, eng, "system")

	require.NoError(t, ch.Release(context.Background()))
	require.NoError(t, ch.Release(context.Background()))
	assert.True(t, ch.Released())
	assert.Equal(t, 0, eng.LiveChannels("system"))
	assert.Equal(t, []string{"create_channel:system", "release_channel:system"}, eng.Calls())

	err := ch.Send(context.Background(), NewBinaryBuffer([]byte("x")))
	assert.ErrorIs(t, err, errors.ErrChannelReleased)

	err = ch.Post([]byte("x"))
	assert.ErrorIs(t, err, errors.ErrChannelReleased)

	ch.OnNativeMessage([]byte("late"))
	assert.Equal(t, 1, rec.Count("inbound message after release dropped"))
}

func TestRelease_DiscardsQueuedDeliveries(t *testing.T) {
	eng := loopback.New()
	d := NewDispatcher()
	var got int
	ch, rec := newTestChannel(t, eng, "system", WithDispatcher(d), WithHandler(func(ctx context.Context, buf *BinaryBuffer) {
		got++
	}))

	require.NoError(t, eng.Emit("system", []byte("queued")))
	require.NoError(t, ch.Release(context.Background()))
	d.Drain(context.Background(), 0)

	assert.Equal(t, 0, got)
	assert.Equal(t, 1, rec.Count("delivery after release discarded"))
}
