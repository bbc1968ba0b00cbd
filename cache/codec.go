package cache

import (
	"encoding/json"
)

// Codec converts memoized results to and from cached payloads
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec default codec
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ErrSerialize.Wrapf(err, "encode %T", v)
	}
	return data, nil
}

func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, ErrSerialize.Wrapf(err, "decode %T", v)
	}
	return v, nil
}

// BytesCodec passes payloads through unchanged
type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (BytesCodec) Decode(data []byte) ([]byte, error) { return data, nil }
