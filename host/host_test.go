package host_test

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/host"
	"github.com/aardvark-ui/bridge/infrastructure/loopback"
	"github.com/aardvark-ui/bridge/internal/testutil"
)

func newHost(t *testing.T, eng *loopback.Engine, opts ...host.Option) (*host.Host, *testutil.LogRecorder) {
	t.Helper()
	logger, rec := testutil.NewLogger()
	p, err := host.NewBuilder(eng, append([]host.Option{host.WithLogger(logger)}, opts...)...).BeforeCreate(context.Background())
	require.NoError(t, err)
	h, err := p.Create(context.Background(), testSurface)
	require.NoError(t, err)
	return h, rec
}

func TestHost_PointerEcho(t *testing.T) {
	var got []channel.Object
	eng := loopback.New(loopback.WithEcho(true))
	h, _ := newHost(t, eng, host.WithSystemHandler(func(_ context.Context, msg channel.Object) {
		got = append(got, msg)
	}))
	ctx := context.Background()

	require.NoError(t, h.SendPointer(entities.PointerEvent{X: 120.5, Y: 64, Action: entities.PointerMove}))
	assert.Empty(t, eng.Received(entities.SystemChannel), "posted sends wait for update")

	require.NoError(t, h.Update(ctx))
	testutil.AssertPayloads(t, []string{`{"action":2,"x":120.5,"y":64.0}`}, eng.Received(entities.SystemChannel))
	assert.Empty(t, got, "echo queued during update is handled on the next one")

	require.NoError(t, h.Update(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, channel.Object{"action": 2, "x": 120.5, "y": 64.0}, got[0])
	assert.Equal(t, uint64(2), h.Updates())
}

func TestHost_UpdateDeliversInOrder(t *testing.T) {
	var got []string
	eng := loopback.New()
	h, _ := newHost(t, eng, host.WithChannel(host.Typed("log", channel.String(), func(_ context.Context, s string) {
		got = append(got, s)
	})))

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, eng.Emit("log", []byte(s)))
	}
	require.NoError(t, h.Update(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestHost_MaxDeliveriesPerUpdate(t *testing.T) {
	var got []string
	eng := loopback.New()
	h, _ := newHost(t, eng,
		host.WithMaxDeliveriesPerUpdate(2),
		host.WithChannel(host.Typed("log", channel.String(), func(_ context.Context, s string) {
			got = append(got, s)
		})),
	)
	ctx := context.Background()

	for _, s := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, eng.Emit("log", []byte(s)))
	}

	require.NoError(t, h.Update(ctx))
	assert.Equal(t, []string{"1", "2"}, got)
	require.NoError(t, h.Update(ctx))
	require.NoError(t, h.Update(ctx))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, got)
}

func TestHost_EngineMessagesDuringUpdate(t *testing.T) {
	var got []string
	eng := loopback.New()
	h, _ := newHost(t, eng, host.WithChannel(host.Typed("log", channel.String(), func(_ context.Context, s string) {
		got = append(got, s)
	})))
	ctx := context.Background()

	eng.EmitOnUpdate("log", []byte("tick"))
	require.NoError(t, h.Update(ctx))
	assert.Empty(t, got)

	require.NoError(t, h.Update(ctx))
	assert.Equal(t, []string{"tick"}, got)
}

func TestHost_RequestFrame(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(1000, 0))
	eng := loopback.New()
	h, rec := newHost(t, eng, host.WithClock(clock))
	ctx := context.Background()

	var frames []time.Time
	h.RequestFrame(func(ts time.Time) { frames = append(frames, ts) })
	h.RequestFrame(func(time.Time) { panic("bad frame") })
	h.RequestFrame(nil)

	require.NoError(t, h.Update(ctx))
	assert.Equal(t, []time.Time{time.Unix(1000, 0)}, frames)
	assert.Equal(t, 1, rec.Count("frame callback panicked"))

	// frames are one-shot
	clock.Advance(16 * time.Millisecond)
	require.NoError(t, h.Update(ctx))
	assert.Len(t, frames, 1)
}

func TestHost_Timers(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	eng := loopback.New()
	h, _ := newHost(t, eng, host.WithClock(clock), host.WithTimers(entities.TimersChannel))
	ctx := context.Background()
	require.NotNil(t, h.Timers())

	require.NoError(t, eng.Emit(entities.TimersChannel, []byte(`{"type":"setTimeout","id":7,"timeout":50}`)))
	require.NoError(t, eng.Emit(entities.TimersChannel, []byte(`{"type":"setTimeout","id":3,"timeout":0}`)))

	require.NoError(t, h.Update(ctx))
	testutil.AssertPayloads(t, []string{`{"type":"timeout","id":3}`}, eng.Received(entities.TimersChannel))
	assert.Equal(t, 1, h.Timers().Pending())

	clock.Advance(50 * time.Millisecond)
	require.NoError(t, h.Update(ctx))
	testutil.AssertPayloads(t, []string{
		`{"type":"timeout","id":3}`,
		`{"type":"timeout","id":7}`,
	}, eng.Received(entities.TimersChannel))
}

func TestHost_TimersDisabledByDefault(t *testing.T) {
	h, _ := newHost(t, loopback.New())
	assert.Nil(t, h.Timers())
	assert.False(t, h.Channels().Registry.Has(entities.TimersChannel))
}

func TestHost_SendTyped(t *testing.T) {
	eng := loopback.New()
	h, _ := newHost(t, eng,
		host.WithChannel(host.Typed("log", channel.String(), nil)),
		host.WithChannel(host.JSON("ui", nil)),
	)
	ctx := context.Background()

	require.NoError(t, host.Send(h, "log", "hello"))
	require.NoError(t, host.Send(h, "ui", channel.Object{"open": "menu"}))

	err := host.Send(h, "log", channel.Object{})
	assert.ErrorIs(t, err, host.ErrUnknownChannel)
	err = host.Send(h, "missing", "x")
	assert.ErrorIs(t, err, host.ErrUnknownChannel)

	require.NoError(t, h.Update(ctx))
	testutil.AssertPayloads(t, []string{"hello"}, eng.Received("log"))
	testutil.AssertPayloads(t, []string{`{"open":"menu"}`}, eng.Received("ui"))
}

func TestHost_Resize(t *testing.T) {
	eng := loopback.New()
	h, _ := newHost(t, eng)
	ctx := context.Background()

	require.NoError(t, h.Resize(ctx, entities.NewSurface(1024, 768)))
	assert.Equal(t, entities.NewSurface(1024, 768), h.Surface())

	st, ok := eng.Host(h.Handle())
	require.True(t, ok)
	assert.Equal(t, 1, st.Resizes)

	var ce *errors.ConfigError
	require.ErrorAs(t, h.Resize(ctx, entities.NewSurface(-1, 1)), &ce)
}

func TestHost_ResizeFailure(t *testing.T) {
	boom := stdErrors.New("lost surface")
	h, _ := newHost(t, loopback.New(loopback.WithFailure(loopback.OpResizeHost, boom)))

	err := h.Resize(context.Background(), entities.NewSurface(10, 10))
	var ee *errors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "resize_host", ee.Operation)
	assert.Equal(t, testSurface, h.Surface())
}

func TestHost_UpdateFailure(t *testing.T) {
	boom := stdErrors.New("device lost")
	h, _ := newHost(t, loopback.New(loopback.WithFailure(loopback.OpUpdateHost, boom)))

	err := h.Update(context.Background())
	var ee *errors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "update_host", ee.Operation)
	assert.Equal(t, uint64(0), h.Updates())
}

func TestHost_Destroy(t *testing.T) {
	eng := loopback.New()
	h, rec := newHost(t, eng, host.WithChannel(host.JSON("ui", nil)))
	ctx := context.Background()

	require.NoError(t, eng.Emit("ui", []byte(`{}`)))
	require.NoError(t, h.Destroy(ctx))

	assert.True(t, h.Destroyed())
	assert.Equal(t, []string{
		"create_channel:system",
		"create_channel:ui",
		"create_host",
		"destroy_host",
		"release_channel:system",
		"release_channel:ui",
	}, eng.Calls())
	assert.Equal(t, 0, eng.LiveChannels(entities.SystemChannel))

	discarded := rec.Find("pending deliveries discarded")
	require.Len(t, discarded, 1)
	assert.Equal(t, int64(1), discarded[0].Attrs["count"])

	st, _ := eng.Host(h.Handle())
	assert.True(t, st.Destroyed)
}

func TestHost_MisuseAfterDestroy(t *testing.T) {
	h, rec := newHost(t, loopback.New())
	ctx := context.Background()
	require.NoError(t, h.Destroy(ctx))

	assert.True(t, errors.IsLifecycle(h.Update(ctx)))
	assert.True(t, errors.IsLifecycle(h.Destroy(ctx)))
	assert.True(t, errors.IsLifecycle(h.Resize(ctx, testSurface)))
	assert.True(t, errors.IsLifecycle(h.SendPointer(entities.PointerEvent{})))
	assert.True(t, errors.IsLifecycle(host.Send(h, entities.SystemChannel, channel.Object{})))
	assert.Equal(t, 3, rec.Count("lifecycle misuse ignored"))
}

func TestHost_MisusePanicsInDebug(t *testing.T) {
	h, _ := newHost(t, loopback.New(), host.WithDebug(true))
	ctx := context.Background()
	require.NoError(t, h.Destroy(ctx))

	assert.Panics(t, func() { _ = h.Update(ctx) })
	assert.Panics(t, func() { _ = h.Destroy(ctx) })
}

func TestHost_InboundAfterDestroyDropped(t *testing.T) {
	called := false
	eng := loopback.New()
	h, _ := newHost(t, eng, host.WithSystemHandler(func(context.Context, channel.Object) { called = true }))
	ctx := context.Background()

	sys := h.System().Binary()
	require.NoError(t, h.Destroy(ctx))

	sys.OnNativeMessage([]byte(`{"late":true}`))
	assert.False(t, called)
}
