package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aardvark-ui/bridge/application/schema"
	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/errors"
	"github.com/aardvark-ui/bridge/infrastructure/loopback"
	"github.com/aardvark-ui/bridge/internal/testutil"
)

func TestMessageValidator_Pointer(t *testing.T) {
	v := NewMessageValidator(schema.DefaultRegistry())

	tests := []struct {
		name    string
		payload string
		valid   bool
	}{
		{name: "valid", payload: `{"x":1,"y":2.5,"action":0}`, valid: true},
		{name: "extra field", payload: `{"x":1,"y":2,"action":1,"pressure":0.3}`, valid: true},
		{name: "missing action", payload: `{"x":1,"y":2}`},
		{name: "string coordinate", payload: `{"x":"left","y":2,"action":0}`},
		{name: "fractional action", payload: `{"x":1,"y":2,"action":0.5}`},
		{name: "not an object", payload: `[1,2,0]`},
		{name: "not json", payload: `{x:1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(schema.PointerSchema, []byte(tt.payload))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var de *errors.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "schema/pointer", de.Codec)
		})
	}
}

func TestMessageValidator_Timer(t *testing.T) {
	v := NewMessageValidator(schema.DefaultRegistry())

	assert.NoError(t, v.Validate(schema.TimerSchema, []byte(`{"type":"setTimeout","id":4,"timeout":16}`)))
	assert.Error(t, v.Validate(schema.TimerSchema, []byte(`{"type":"setInterval","id":4}`)))
}

func TestMessageValidator_UnknownSchema(t *testing.T) {
	v := NewMessageValidator(schema.NewRegistry())
	err := v.Validate("pointer", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema registered")
}

func TestMiddleware_DropsInvalidMessages(t *testing.T) {
	eng := loopback.New()
	logger, rec := testutil.NewLogger()
	v := NewMessageValidator(schema.DefaultRegistry())

	var got []string
	_, err := channel.Create(context.Background(), eng, "system",
		channel.WithLogger(logger),
		channel.WithMiddleware(Middleware(v, schema.PointerSchema, logger)),
		channel.WithHandler(func(ctx context.Context, buf *channel.BinaryBuffer) {
			got = append(got, buf.String())
		}),
	)
	require.NoError(t, err)

	require.NoError(t, eng.Emit("system", []byte(`{"x":1}`)))
	require.NoError(t, eng.Emit("system", []byte(`{"x":1,"y":1,"action":2}`)))

	assert.Equal(t, []string{`{"x":1,"y":1,"action":2}`}, got)
	records := rec.Find("message rejected by schema")
	require.Len(t, records, 1)
	assert.Equal(t, "system", records[0].Attrs["channel"])
}
