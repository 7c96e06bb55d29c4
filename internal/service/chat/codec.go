package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/startup-vision/backend/internal/model/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/storage"
)

const (
	sessionsKeyPrefix = "startup_vision_chat_sessions_"
	currentKeyPrefix  = "startup_vision_current_session_"
)

// SessionsKey returns the storage key of identity's session collection.
func SessionsKey(identity string) string { return sessionsKeyPrefix + identity }

// CurrentKey returns the storage key of identity's current-session pointer.
func CurrentKey(identity string) string { return currentKeyPrefix + identity }

// SessionStore serialises session collections and current pointers to a storage.Store.
type SessionStore struct {
	store storage.Store
}

// NewSessionStore wraps store.
func NewSessionStore(store storage.Store) *SessionStore {
	return &SessionStore{store: store}
}

// Load returns identity's sessions in persisted order. A missing key yields an empty collection.
func (c *SessionStore) Load(ctx context.Context, identity string) ([]chat.Session, error) {
	raw, ok, err := c.store.Get(ctx, SessionsKey(identity))
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if !ok || raw == "" {
		return []chat.Session{}, nil
	}

	var sessions []chat.Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	if sessions == nil {
		sessions = []chat.Session{}
	}
	for i := range sessions {
		if sessions[i].Messages == nil {
			sessions[i].Messages = []chat.Message{}
		}
	}
	return sessions, nil
}

// Save replaces identity's persisted collection.
func (c *SessionStore) Save(ctx context.Context, identity string, sessions []chat.Session) error {
	if sessions == nil {
		sessions = []chat.Session{}
	}
	payload, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := c.store.Set(ctx, SessionsKey(identity), string(payload)); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	return nil
}

// CurrentID returns the persisted current-session id.
func (c *SessionStore) CurrentID(ctx context.Context, identity string) (string, bool, error) {
	id, ok, err := c.store.Get(ctx, CurrentKey(identity))
	if err != nil {
		return "", false, fmt.Errorf("load current session: %w", err)
	}
	if !ok || id == "" {
		return "", false, nil
	}
	return id, true, nil
}

// SetCurrentID persists sessionID as identity's current session.
func (c *SessionStore) SetCurrentID(ctx context.Context, identity, sessionID string) error {
	if err := c.store.Set(ctx, CurrentKey(identity), sessionID); err != nil {
		return fmt.Errorf("save current session: %w", err)
	}
	return nil
}

// ClearCurrentID removes identity's current-session pointer.
func (c *SessionStore) ClearCurrentID(ctx context.Context, identity string) error {
	if err := c.store.Remove(ctx, CurrentKey(identity)); err != nil {
		return fmt.Errorf("clear current session: %w", err)
	}
	return nil
}
