// Package storage is the durable key-value store used to persist carts and
// sessions between restarts.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("key not found")

type KeyValue interface {
	// Get returns ErrNotFound when key holds nothing.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
}

// CartKey and SessionKey namespace entries per session.
func CartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func SessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}
