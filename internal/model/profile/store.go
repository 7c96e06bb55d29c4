package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zhouzirui/startup-vision/backend/internal/storage"
)

// UsersKey holds every account as one JSON object keyed by registration number.
const UsersKey = "startup_vision_users"

// ErrExists is returned by Create when the registration number is taken.
var ErrExists = errors.New("profile already exists")

// Store exposes account records to the auth service.
type Store interface {
	Find(ctx context.Context, regNumber string) (Record, bool, error)
	// Create inserts record only when its registration number is unused.
	Create(ctx context.Context, record Record) error
	Put(ctx context.Context, record Record) error
}

// KVStore implements Store on top of a storage.Store.
type KVStore struct {
	mu    sync.Mutex
	store storage.Store
}

// NewKVStore returns a KVStore backed by store.
func NewKVStore(store storage.Store) *KVStore {
	return &KVStore{store: store}
}

// Find looks up an account by registration number.
func (s *KVStore) Find(ctx context.Context, regNumber string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	record, ok := users[regNumber]
	return record, ok, nil
}

// Create inserts record, failing with ErrExists when the account is already present.
func (s *KVStore) Create(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	if _, ok := users[record.RegNumber]; ok {
		return ErrExists
	}
	users[record.RegNumber] = record
	return s.save(ctx, users)
}

// Put inserts or replaces record.
func (s *KVStore) Put(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load(ctx)
	if err != nil {
		return err
	}
	users[record.RegNumber] = record
	return s.save(ctx, users)
}

func (s *KVStore) save(ctx context.Context, users map[string]Record) error {
	payload, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := s.store.Set(ctx, UsersKey, string(payload)); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (s *KVStore) load(ctx context.Context) (map[string]Record, error) {
	raw, ok, err := s.store.Get(ctx, UsersKey)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	users := make(map[string]Record)
	if !ok || raw == "" {
		return users, nil
	}
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	// "null" 会把 map 置为 nil
	if users == nil {
		users = make(map[string]Record)
	}
	return users, nil
}
