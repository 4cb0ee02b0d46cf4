package channel

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"reflect"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/aardvark-ui/bridge/domain/errors"
)

// Codec converts between values and message payloads.
// Encode is deterministic; Decode is a left inverse of Encode and never
// returns a partial value: malformed input yields *errors.DecodeError.
type Codec[T any] interface {
	Name() string
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// Object is the structured value carried by the JSON codec.
type Object = map[string]any

var (
	errInvalidUTF8  = stdErrors.New("invalid UTF-8")
	errNotObject    = stdErrors.New("top-level value is not an object")
	errTrailingData = stdErrors.New("trailing data after value")

	reflectMapStringAny = reflect.TypeOf(map[string]any(nil))
)

// String returns the UTF-8 string codec.
func String() Codec[string] {
	return stringCodec{}
}

type stringCodec struct{}

func (stringCodec) Name() string { return "string" }

func (stringCodec) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, &errors.EncodingError{Codec: "string", Err: errInvalidUTF8}
	}
	return []byte(s), nil
}

func (stringCodec) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &errors.DecodeError{Codec: "string", Size: len(data), Err: errInvalidUTF8}
	}
	return string(data), nil
}

// StringCharset returns a string codec for a WHATWG encoding label such as
// "utf-8", "windows-1252" or "shift_jis". UTF-8 labels return String().
// Decoding is strict: bytes that do not round-trip through the charset fail.
func StringCharset(label string) (Codec[string], error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, &errors.EncodingError{Codec: "string/" + label, Err: err}
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, &errors.EncodingError{Codec: "string/" + label, Err: err}
	}
	if name == "utf-8" {
		return String(), nil
	}
	return charsetCodec{name: "string/" + name, enc: enc}, nil
}

type charsetCodec struct {
	enc  encoding.Encoding
	name string
}

func (c charsetCodec) Name() string { return c.name }

func (c charsetCodec) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, &errors.EncodingError{Codec: c.name, Err: errInvalidUTF8}
	}
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, &errors.EncodingError{Codec: c.name, Err: err}
	}
	return out, nil
}

func (c charsetCodec) Decode(data []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &errors.DecodeError{Codec: c.name, Size: len(data), Err: err}
	}
	// decoders substitute U+FFFD for invalid input
	back, err := c.enc.NewEncoder().Bytes(out)
	if err != nil || !bytes.Equal(back, data) {
		return "", &errors.DecodeError{Codec: c.name, Size: len(data), Err: fmt.Errorf("invalid %s input", c.name)}
	}
	return string(out), nil
}

// JSON returns the structured codec: a JSON object serialized as UTF-8 text.
// Encoding is canonical (sorted keys, no HTML escaping, no trailing newline).
// A nil Object encodes as {}. Decoding rejects invalid text, trailing data
// and non-object values.
//
// Numbers keep their kind across a round trip. Floating-point values are
// always written with a fraction or exponent and decode as float64; integers
// are written as plain digits and decode as int (int64 or uint64 when they
// do not fit). Integers outside the uint64 range stay json.Number.
func JSON() Codec[Object] {
	return jsonObjectCodec{}
}

type jsonObjectCodec struct{}

func (jsonObjectCodec) Name() string { return "json" }

func (jsonObjectCodec) Encode(obj Object) ([]byte, error) {
	if obj == nil {
		obj = Object{}
	}
	canonical, err := canonicalNumbers(obj)
	if err != nil {
		return nil, &errors.EncodingError{Codec: "json", Err: err}
	}
	return marshalJSON(canonical)
}

func (jsonObjectCodec) Decode(data []byte) (Object, error) {
	var v any
	if err := unmarshalJSON(data, &v, true); err != nil {
		return nil, err
	}
	obj, ok := decodedNumbers(v).(map[string]any)
	if !ok {
		return nil, &errors.DecodeError{Codec: "json", Size: len(data), Err: errNotObject}
	}
	return obj, nil
}

// JSONOf returns a structured codec bound to a Go type. Fields in the payload
// that T does not declare are ignored.
func JSONOf[T any]() Codec[T] {
	return jsonTypedCodec[T]{}
}

type jsonTypedCodec[T any] struct{}

func (jsonTypedCodec[T]) Name() string { return "json" }

func (jsonTypedCodec[T]) Encode(v T) ([]byte, error) {
	return marshalJSON(v)
}

func (jsonTypedCodec[T]) Decode(data []byte) (T, error) {
	var v T
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return v, &errors.DecodeError{Codec: "json", Size: len(data), Err: errNotObject}
	}
	var out T
	if err := unmarshalJSON(data, &out, false); err != nil {
		return v, err
	}
	return out, nil
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, &errors.EncodingError{Codec: "json", Err: err}
	}
	text := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	if _, err := String().Decode(text); err != nil {
		return nil, &errors.EncodingError{Codec: "json", Err: err}
	}
	return text, nil
}

func unmarshalJSON(data []byte, v any, useNumber bool) error {
	text, err := String().Decode(data)
	if err != nil {
		return &errors.DecodeError{Codec: "json", Size: len(data), Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return &errors.DecodeError{Codec: "json", Size: len(data), Err: err}
	}
	if _, err := dec.Token(); !stdErrors.Is(err, io.EOF) {
		return &errors.DecodeError{Codec: "json", Size: len(data), Err: errTrailingData}
	}
	return nil
}

// CBOR returns a deterministic CBOR codec (RFC 8949 core deterministic encoding).
// Untyped maps decode as map[string]any.
func CBOR[T any]() (Codec[T], error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{DefaultMapType: reflectMapStringAny}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec[T]{enc: em, dec: dm}, nil
}

type cborCodec[T any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func (cborCodec[T]) Name() string { return "cbor" }

func (c cborCodec[T]) Encode(v T) ([]byte, error) {
	out, err := c.enc.Marshal(v)
	if err != nil {
		return nil, &errors.EncodingError{Codec: "cbor", Err: err}
	}
	return out, nil
}

func (c cborCodec[T]) Decode(data []byte) (T, error) {
	var zero, out T
	if err := c.dec.Unmarshal(data, &out); err != nil {
		return zero, &errors.DecodeError{Codec: "cbor", Size: len(data), Err: err}
	}
	return out, nil
}
