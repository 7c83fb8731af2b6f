package store

import "context"

// GetAs reads a value decoded into T.
func GetAs[T any](ctx context.Context, r KVReader, persona, app, key string) (T, error) {
	var out T
	err := r.GetInto(ctx, persona, app, key, &out)
	return out, err
}

// GetOr returns def when the key is missing.
func GetOr[T any](ctx context.Context, r KVReader, persona, app, key string, def T) (T, error) {
	v, err := GetAs[T](ctx, r, persona, app, key)
	if isNotFound(err) {
		return def, nil
	}
	return v, err
}
