package channel

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aardvark-ui/bridge/domain/entities"
	"github.com/aardvark-ui/bridge/domain/errors"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func requireDecodeError(t *testing.T, err error, codec string) {
	t.Helper()
	require.Error(t, err)
	var de *errors.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, codec, de.Codec)
}

func requireEncodingError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var ee *errors.EncodingError
	require.ErrorAs(t, err, &ee)
}

func TestStringCodec_RoundTrip(t *testing.T) {
	codec := String()
	assert.Equal(t, "string", codec.Name())

	for _, s := range []string{"", "hello", "héllo wörld", "日本語", "🦔 aardvark"} {
		data, err := codec.Encode(s)
		require.NoError(t, err)
		assert.Equal(t, []byte(s), data)

		back, err := codec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, s, back)
	}
}

func TestStringCodec_InvalidUTF8(t *testing.T) {
	_, err := String().Decode([]byte{0xff, 0xfe, 'a'})
	requireDecodeError(t, err, "string")

	_, err = String().Encode("bad \xff byte")
	requireEncodingError(t, err)
}

func TestStringCharset(t *testing.T) {
	t.Run("utf-8 labels use the string codec", func(t *testing.T) {
		codec, err := StringCharset("UTF8")
		require.NoError(t, err)
		assert.Equal(t, "string", codec.Name())
	})

	t.Run("latin1 round trip", func(t *testing.T) {
		codec, err := StringCharset("latin1")
		require.NoError(t, err)
		assert.Equal(t, "string/windows-1252", codec.Name())

		data, err := codec.Encode("café")
		require.NoError(t, err)
		assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, data)

		back, err := codec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, "café", back)
	})

	t.Run("unrepresentable runes fail to encode", func(t *testing.T) {
		codec, err := StringCharset("windows-1252")
		require.NoError(t, err)
		_, err = codec.Encode("日本")
		requireEncodingError(t, err)
	})

	t.Run("truncated multibyte input fails to decode", func(t *testing.T) {
		codec, err := StringCharset("shift_jis")
		require.NoError(t, err)
		_, err = codec.Decode([]byte{0x82})
		requireDecodeError(t, err, "string/shift_jis")
	})

	t.Run("unknown label", func(t *testing.T) {
		_, err := StringCharset("no-such-charset")
		requireEncodingError(t, err)
	})
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSON()
	assert.Equal(t, "json", codec.Name())

	tests := []struct {
		obj  Object
		name string
	}{
		{name: "pointer event", obj: Object{"x": 1.5, "y": 2.0, "action": 0.0}},
		{name: "nested", obj: Object{"a": Object{"b": []any{"c", 1.0, true, nil}}}},
		{name: "empty", obj: Object{}},
		{name: "unicode", obj: Object{"text": "héllo <world> & 日本"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Encode(tt.obj)
			require.NoError(t, err)

			back, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.obj, back)
		})
	}
}

func TestJSONCodec_Canonical(t *testing.T) {
	codec := JSON()
	obj := Object{"z": true, "a": "<b>&", "n": Object{"y": nil, "x": 1.5}, "list": []any{1, "two"}}

	first, err := codec.Encode(obj)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := codec.Encode(obj)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	newGoldie(t).Assert(t, "json_object", first)

	empty, err := codec.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestJSONCodec_Malformed(t *testing.T) {
	tests := map[string][]byte{
		"empty":            {},
		"truncated":        []byte(`{"a":`),
		"array":            []byte(`[1,2]`),
		"string":           []byte(`"str"`),
		"null":             []byte(`null`),
		"two objects":      []byte(`{} {}`),
		"trailing garbage": []byte(`{"a":1}x`),
		"invalid utf-8":    []byte("{\"a\":\"\xff\"}"),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			obj, err := JSON().Decode(data)
			requireDecodeError(t, err, "json")
			assert.Nil(t, obj)
		})
	}
}

func TestJSONCodec_TrailingWhitespaceAccepted(t *testing.T) {
	obj, err := JSON().Decode([]byte(" {\"a\":1} \n"))
	require.NoError(t, err)
	assert.Equal(t, Object{"a": 1}, obj)
}

func TestJSONCodec_NumberKinds(t *testing.T) {
	codec := JSON()

	tests := []struct {
		obj     Object
		name    string
		payload string
	}{
		{name: "ints", obj: Object{"x": 10, "y": 20, "action": 0}, payload: `{"action":0,"x":10,"y":20}`},
		{name: "integral floats", obj: Object{"x": 2.0, "y": 0.0}, payload: `{"x":2.0,"y":0.0}`},
		{name: "large float", obj: Object{"v": 1e21}, payload: `{"v":1e+21}`},
		{name: "int64 above 2^53", obj: Object{"id": 9007199254740993}, payload: `{"id":9007199254740993}`},
		{name: "uint64", obj: Object{"id": uint64(math.MaxUint64)}, payload: `{"id":18446744073709551615}`},
		{name: "nested", obj: Object{"a": []any{1, 1.5, Object{"b": 3}}}, payload: `{"a":[1,1.5,{"b":3}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Encode(tt.obj)
			require.NoError(t, err)
			assert.Equal(t, tt.payload, string(data))

			back, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.obj, back)
		})
	}
}

func TestJSONCodec_EncodeLeavesInputUntouched(t *testing.T) {
	nested := Object{"y": 2.0}
	obj := Object{"x": 1.0, "n": nested}

	_, err := JSON().Encode(obj)
	require.NoError(t, err)
	assert.Equal(t, 1.0, obj["x"])
	assert.Equal(t, 2.0, nested["y"])
}

func TestJSONCodec_OversizedIntegerKeptExact(t *testing.T) {
	payload := []byte(`{"n":123456789012345678901234567890}`)

	obj, err := JSON().Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, json.Number("123456789012345678901234567890"), obj["n"])

	data, err := JSON().Encode(obj)
	require.NoError(t, err)
	assert.Equal(t, string(payload), string(data))
}

func TestJSONCodec_UnencodableValues(t *testing.T) {
	_, err := JSON().Encode(Object{"f": func() {}})
	requireEncodingError(t, err)

	_, err = JSON().Encode(Object{"nan": math.NaN()})
	requireEncodingError(t, err)
}

func TestJSONOf_ExtraFieldsIgnored(t *testing.T) {
	payload := []byte(`{"x":10,"y":20.5,"action":1,"pressure":0.7}`)

	obj, err := JSON().Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, 0.7, obj["pressure"])

	ev, err := JSONOf[entities.PointerEvent]().Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, entities.PointerEvent{X: 10, Y: 20.5, Action: entities.PointerUp}, ev)
}

func TestJSONOf_RoundTripAndGolden(t *testing.T) {
	codec := JSONOf[entities.PointerEvent]()
	ev := entities.PointerEvent{X: 120.5, Y: 64, Action: entities.PointerMove}

	data, err := codec.Encode(ev)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "pointer_event_json", data)

	back, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, back)
}

func TestJSONOf_Malformed(t *testing.T) {
	codec := JSONOf[entities.PointerEvent]()
	for _, data := range [][]byte{[]byte(`null`), []byte(`[1]`), []byte(`{"x":"left"}`), []byte(`{"x":1`)} {
		_, err := codec.Decode(data)
		requireDecodeError(t, err, "json")
	}
}

func TestCBORCodec(t *testing.T) {
	codec, err := CBOR[entities.PointerEvent]()
	require.NoError(t, err)
	assert.Equal(t, "cbor", codec.Name())

	ev := entities.PointerEvent{X: 1.5, Y: 2, Action: entities.PointerUp}
	data, err := codec.Encode(ev)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "pointer_event_cbor", []byte(hex.EncodeToString(data)))

	back, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, ev, back)

	t.Run("malformed", func(t *testing.T) {
		_, err := codec.Decode(data[:len(data)-3])
		requireDecodeError(t, err, "cbor")

		_, err = codec.Decode(append(append([]byte{}, data...), 0x00))
		requireDecodeError(t, err, "cbor")

		_, err = codec.Decode(nil)
		requireDecodeError(t, err, "cbor")
	})

	t.Run("untyped maps", func(t *testing.T) {
		objCodec, err := CBOR[Object]()
		require.NoError(t, err)

		obj, err := objCodec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, 1.5, obj["x"])
		assert.Contains(t, obj, "action")
	})
}
