package channel

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// canonicalNumbers returns a copy of v in which every float is a
// json.Number carrying a fraction or an exponent, so that the decoder can
// tell it apart from an integer.
func canonicalNumbers(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return floatNumber(t, 64)
	case float32:
		return floatNumber(float64(t), 32)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := canonicalNumbers(e)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := canonicalNumbers(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func floatNumber(f float64, bitSize int) (json.Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported value: %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, bitSize)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

// decodedNumbers replaces the json.Number values produced by a UseNumber
// decoder in place.
func decodedNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return parseNumber(t)
	case map[string]any:
		for k, e := range t {
			t[k] = decodedNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = decodedNumbers(e)
		}
	}
	return v
}

func parseNumber(n json.Number) any {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return n
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	return n
}
