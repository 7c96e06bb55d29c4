// Package storage defines the string key-value port that every durable piece of
// state goes through: session collections, current-session pointers, the
// completion credential and profile records.
package storage

import (
	"context"
	"errors"
)

// ErrKeyRequired is returned when an empty key is used.
var ErrKeyRequired = errors.New("storage key is required")

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value stored under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}
