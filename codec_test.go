package redcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringCodec(t *testing.T) {
	codec := StringCodec{}

	t.Run("encodes strings", func(t *testing.T) {
		data, err := codec.Encode("hello")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("encodes byte slices", func(t *testing.T) {
		data, err := codec.Encode([]byte{0x00, 0xff})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff}, data)
	})

	t.Run("rejects other types", func(t *testing.T) {
		_, err := codec.Encode(42)
		assert.ErrorIs(t, err, ErrSerialization)
	})

	t.Run("decodes to string", func(t *testing.T) {
		v, err := codec.Decode([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	})
}

func TestJSONCodec(t *testing.T) {
	codec := JSONCodec{}

	t.Run("round trips structured values", func(t *testing.T) {
		data, err := codec.Encode(map[string]any{"n": 1})
		require.NoError(t, err)

		v, err := codec.Decode(data)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"n": float64(1)}, v)
	})

	t.Run("rejects unencodable values", func(t *testing.T) {
		_, err := codec.Encode(make(chan int))
		assert.ErrorIs(t, err, ErrSerialization)
	})

	t.Run("rejects malformed data", func(t *testing.T) {
		_, err := codec.Decode([]byte("{not json"))
		assert.ErrorIs(t, err, ErrSerialization)
	})
}

func TestComputeKey(t *testing.T) {
	t.Run("pass-through without codec", func(t *testing.T) {
		kc := keyCodec{}
		key, err := kc.computeKey([]byte("raw"))
		require.NoError(t, err)
		assert.Equal(t, []byte("raw"), key)
	})

	t.Run("rejects non-byte keys without codec", func(t *testing.T) {
		kc := keyCodec{}
		_, err := kc.computeKey("raw")
		assert.ErrorIs(t, err, ErrSerialization)
	})

	t.Run("applies prefix", func(t *testing.T) {
		kc := keyCodec{codec: StringCodec{}, prefix: []byte("orders:")}
		key, err := kc.computeKey("42")
		require.NoError(t, err)
		assert.Equal(t, []byte("orders:42"), key)
	})

	t.Run("pass-through ignores prefix", func(t *testing.T) {
		kc := keyCodec{prefix: []byte("p:")}
		key, err := kc.computeKey([]byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("k"), key)
	})

	t.Run("prefixed key does not alias inputs", func(t *testing.T) {
		prefix := []byte("p:")
		kc := keyCodec{codec: StringCodec{}, prefix: prefix}
		raw := []byte("key")

		key, err := kc.computeKey(raw)
		require.NoError(t, err)

		for i := range key {
			key[i] = 'x'
		}
		assert.Equal(t, []byte("p:"), prefix)
		assert.Equal(t, []byte("key"), raw)
	})

	t.Run("empty prefix leaves key untouched", func(t *testing.T) {
		kc := keyCodec{codec: StringCodec{}}
		key, err := kc.computeKey("42")
		require.NoError(t, err)
		assert.Equal(t, []byte("42"), key)
	})

	t.Run("propagates codec failures", func(t *testing.T) {
		kc := keyCodec{codec: StringCodec{}}
		_, err := kc.computeKey(struct{}{})
		assert.ErrorIs(t, err, ErrSerialization)
	})
}
