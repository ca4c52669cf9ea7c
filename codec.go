package redcache

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSerialization reports a value or key the configured codec cannot
// handle. It is a programmer error, never retried.
var ErrSerialization = errors.New("serialization error")

// Codec converts logical keys or values to and from raw bytes.
// Implementations must either succeed or fail explicitly; they must not
// return partially encoded data.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// StringCodec encodes strings and byte slices verbatim. Any other type
// fails with ErrSerialization. Decoded values are strings.
type StringCodec struct{}

func (StringCodec) Encode(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	default:
		return nil, fmt.Errorf("%w: string codec cannot encode %T", ErrSerialization, v)
	}
}

func (StringCodec) Decode(data []byte) (any, error) {
	return string(data), nil
}

// JSONCodec encodes values as JSON. Decoded values use the generic JSON
// type mapping (map[string]any, []any, float64, string, bool, nil).
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return v, nil
}

// keyCodec derives the physical storage key for a logical key,
// applying the optional cache prefix.
type keyCodec struct {
	codec  Codec
	prefix []byte
}

// computeKey serializes the logical key and prepends the prefix.
// Without a codec, raw byte keys pass through unchanged and the prefix
// is not applied; the caller is addressing physical keys directly. The
// prefixed result is always a fresh buffer so neither the prefix nor
// the caller's key bytes are aliased.
func (kc keyCodec) computeKey(key any) ([]byte, error) {
	if kc.codec == nil {
		b, ok := key.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: no key codec configured for %T", ErrSerialization, key)
		}
		return b, nil
	}

	raw, err := kc.codec.Encode(key)
	if err != nil {
		return nil, err
	}

	if len(kc.prefix) == 0 {
		return raw, nil
	}

	out := make([]byte, 0, len(kc.prefix)+len(raw))
	out = append(out, kc.prefix...)
	out = append(out, raw...)
	return out, nil
}
