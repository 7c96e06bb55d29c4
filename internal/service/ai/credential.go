package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/startup-vision/backend/internal/secret"
	"github.com/zhouzirui/startup-vision/backend/internal/storage"
)

// CredentialKey is the storage key holding the completion credential.
const CredentialKey = "startup_vision_api_key"

// CredentialStore persists the completion credential, sealing it when a sealer is configured.
type CredentialStore struct {
	store  storage.Store
	sealer secret.Sealer
}

// NewCredentialStore returns a CredentialStore. sealer may be nil, in which case
// the credential is stored as-is.
func NewCredentialStore(store storage.Store, sealer secret.Sealer) *CredentialStore {
	return &CredentialStore{store: store, sealer: sealer}
}

// Load returns the persisted credential, or "" when none is stored.
func (c *CredentialStore) Load(ctx context.Context) (string, error) {
	value, ok, err := c.store.Get(ctx, CredentialKey)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if !ok || value == "" {
		return "", nil
	}

	if c.sealer == nil {
		return value, nil
	}
	opened, err := c.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("open credential: %w", err)
	}
	return opened, nil
}

// Save persists key.
func (c *CredentialStore) Save(ctx context.Context, key string) error {
	value := key
	if c.sealer != nil {
		sealed, err := c.sealer.Seal(key)
		if err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
		value = sealed
	}

	if err := c.store.Set(ctx, CredentialKey, value); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Remove deletes the persisted credential entirely.
func (c *CredentialStore) Remove(ctx context.Context) error {
	if err := c.store.Remove(ctx, CredentialKey); err != nil {
		return fmt.Errorf("remove credential: %w", err)
	}
	return nil
}
