// Package storage defines the flat key-value persistence used by the
// availability and booking stores. Drivers give no atomicity across keys.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"availability-service/pkg/response"
)

type KV interface {
	// Get returns response.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// GetJSON loads key into v. found is false when the key is absent.
func GetJSON(ctx context.Context, kv KV, key string, v any) (found bool, err error) {
	const op = "storage.GetJSON"

	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%s: decode %s: %w", op, key, err)
	}

	return true, nil
}

func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	const op = "storage.SetJSON"

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: encode %s: %w", op, key, err)
	}

	if err := kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
