package cache

import (
	"context"

	"go.uber.org/zap"
)

// MemoSpec describes a memoized function
type MemoSpec[A, R any] struct {
	// Name function identity, part of every key; two functions must not share it
	Name     string
	Category Category
	// Policy zero means the category default
	Policy Policy
	// Key identifying part of the argument; defaults to KeyOf(arg)
	Key   func(A) string
	Codec Codec[R]
}

// Memoize wraps fn so each call goes through m.Get under the key
// <Name>:<Key(arg)>. Errors from fn are returned unchanged; a cached payload the
// codec cannot decode is recomputed with ForceRefresh.
//
//	lookupParcel := cache.Memoize(mgr, cache.MemoSpec[string, Parcel]{
//	    Name:     "cadastre.parcel",
//	    Category: cache.CategoryGeo,
//	    Policy:   cache.Weekly,
//	}, fetchParcel)
func Memoize[A, R any](m *Manager, spec MemoSpec[A, R], fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	keyFn := spec.Key
	if keyFn == nil {
		keyFn = func(a A) string { return KeyOf(a) }
	}
	var codec Codec[R] = JSONCodec[R]{}
	if spec.Codec != nil {
		codec = spec.Codec
	}

	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		if spec.Name == "" || fn == nil {
			return zero, ErrInvalidArgument.WithMsg("memoized function needs a name and a body")
		}

		id := spec.Name + ":" + keyFn(arg)
		recompute := func(ctx context.Context) ([]byte, error) {
			r, err := fn(ctx, arg)
			if err != nil {
				return nil, err
			}
			return codec.Encode(r)
		}

		data, err := m.Get(ctx, spec.Category, id, spec.Policy, recompute)
		if err != nil {
			return zero, err
		}
		r, err := codec.Decode(data)
		if err == nil {
			return r, nil
		}

		m.log.WarnCtx(ctx, "cached payload undecodable, refreshing",
			zap.String("category", string(spec.Category)),
			zap.String("id", id),
			zap.Error(err),
		)
		data, err = m.ForceRefresh(ctx, spec.Category, id, spec.Policy, recompute)
		if err != nil {
			return zero, err
		}
		return codec.Decode(data)
	}
}
