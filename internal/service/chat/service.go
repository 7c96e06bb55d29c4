package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/startup-vision/backend/internal/model/chat"
)

var (
	ErrAuthRequired     = errors.New("authentication required")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoCurrentSession = errors.New("no current session")
	ErrEmptyMessage     = errors.New("message content is required")
	ErrPersistFailed    = errors.New("failed to persist chat state")
)

const (
	// SendFailureText is the workspace error recorded when a send cannot be persisted.
	SendFailureText = "Failed to send message. Please try again."
	// ReplyFailurePrefix starts the assistant message written when no reply could be produced.
	ReplyFailurePrefix = "I'm sorry, I encountered an error while processing your request. "
)

// ReplyGenerator produces analyst replies from conversation history.
type ReplyGenerator interface {
	HasCredential(ctx context.Context) bool
	GenerateReply(ctx context.Context, messages []chat.Message) (string, error)
}

// Responder produces a local reply when no credential is configured.
type Responder interface {
	Respond(ctx context.Context, content string) (string, error)
}

// Status mirrors the flags the presentation layer renders.
type Status struct {
	Loading          bool   `json:"loading"`
	Error            string `json:"error,omitempty"`
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
}

// Snapshot is a copy of an identity's workspace.
type Snapshot struct {
	Sessions         []chat.Session `json:"sessions"`
	CurrentSessionID string         `json:"currentSessionId,omitempty"`
}

// Current returns the session the pointer references.
func (s Snapshot) Current() (chat.Session, bool) {
	for _, session := range s.Sessions {
		if session.ID == s.CurrentSessionID {
			return session, true
		}
	}
	return chat.Session{}, false
}

// SendResult describes one completed send.
type SendResult struct {
	Session          chat.Session `json:"session"`
	UserMessage      chat.Message `json:"userMessage"`
	AssistantMessage chat.Message `json:"assistantMessage"`
}

type workspace struct {
	sessions  []chat.Session
	currentID string
	loading   int
	lastErr   string
}

func (w *workspace) indexOf(sessionID string) int {
	if sessionID == "" {
		return -1
	}
	for i, session := range w.sessions {
		if session.ID == sessionID {
			return i
		}
	}
	return -1
}

func (w *workspace) snapshot() Snapshot {
	sessions := make([]chat.Session, len(w.sessions))
	for i, session := range w.sessions {
		sessions[i] = session.Clone()
	}
	return Snapshot{Sessions: sessions, CurrentSessionID: w.currentID}
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service owns every identity's session collection and current pointer and
// sequences the send-message protocol.
type Service struct {
	mu         sync.Mutex
	store      *SessionStore
	replies    ReplyGenerator
	fallback   Responder
	now        func() time.Time
	newID      func() string
	workspaces map[string]*workspace
}

// NewService wires the state manager. replies may be nil, in which case every
// reply comes from fallback.
func NewService(store *SessionStore, replies ReplyGenerator, fallback Responder, opts ...Option) *Service {
	s := &Service{
		store:      store,
		replies:    replies,
		fallback:   fallback,
		now:        time.Now,
		newID:      uuid.NewString,
		workspaces: make(map[string]*workspace),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open activates identity, restoring its sessions and current pointer from storage.
func (s *Service) Open(ctx context.Context, identity string) (Snapshot, error) {
	if identity == "" {
		return Snapshot{}, ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		return Snapshot{}, err
	}
	return ws.snapshot(), nil
}

// Sessions lists identity's sessions, most recent first.
func (s *Service) Sessions(ctx context.Context, identity string) ([]chat.Session, error) {
	snapshot, err := s.Open(ctx, identity)
	if err != nil {
		return nil, err
	}
	return snapshot.Sessions, nil
}

// Current returns identity's current session, if any.
func (s *Service) Current(ctx context.Context, identity string) (chat.Session, bool, error) {
	snapshot, err := s.Open(ctx, identity)
	if err != nil {
		return chat.Session{}, false, err
	}
	session, ok := snapshot.Current()
	return session, ok, nil
}

// Status reports the loading and error flags for identity.
func (s *Service) Status(ctx context.Context, identity string) (Status, error) {
	if identity == "" {
		return Status{}, ErrAuthRequired
	}

	s.mu.Lock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		s.mu.Unlock()
		return Status{}, err
	}
	status := Status{Loading: ws.loading > 0, Error: ws.lastErr}
	s.mu.Unlock()

	status.APIKeyConfigured = s.replies != nil && s.replies.HasCredential(ctx)
	return status, nil
}

// CreateSession prepends a fresh session and makes it current.
func (s *Service) CreateSession(ctx context.Context, identity string) (chat.Session, error) {
	if identity == "" {
		return chat.Session{}, ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		return chat.Session{}, err
	}
	return s.createLocked(ctx, identity, ws)
}

// EnsureCurrentSession returns the current session, creating one when none is
// current. created reports whether a session was created.
func (s *Service) EnsureCurrentSession(ctx context.Context, identity string) (session chat.Session, created bool, err error) {
	if identity == "" {
		return chat.Session{}, false, ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		return chat.Session{}, false, err
	}
	if idx := ws.indexOf(ws.currentID); idx >= 0 {
		return ws.sessions[idx].Clone(), false, nil
	}

	session, err = s.createLocked(ctx, identity, ws)
	if err != nil {
		return chat.Session{}, false, err
	}
	return session, true, nil
}

// LoadSession makes sessionID current. An unknown id leaves the pointer untouched.
func (s *Service) LoadSession(ctx context.Context, identity, sessionID string) (chat.Session, error) {
	if identity == "" {
		return chat.Session{}, ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		return chat.Session{}, err
	}

	idx := ws.indexOf(sessionID)
	if idx < 0 {
		return chat.Session{}, ErrSessionNotFound
	}
	if err := s.store.SetCurrentID(ctx, identity, sessionID); err != nil {
		return chat.Session{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	ws.currentID = sessionID
	return ws.sessions[idx].Clone(), nil
}

// DeleteSession removes sessionID. Deleting the current session promotes the
// new first session, or clears the pointer when none remain.
func (s *Service) DeleteSession(ctx context.Context, identity, sessionID string) error {
	if identity == "" {
		return ErrAuthRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		return err
	}

	idx := ws.indexOf(sessionID)
	if idx < 0 {
		return ErrSessionNotFound
	}

	remaining := make([]chat.Session, 0, len(ws.sessions)-1)
	remaining = append(remaining, ws.sessions[:idx]...)
	remaining = append(remaining, ws.sessions[idx+1:]...)
	if err := s.store.Save(ctx, identity, remaining); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	ws.sessions = remaining

	if ws.currentID != sessionID {
		return nil
	}
	if len(remaining) == 0 {
		ws.currentID = ""
		if err := s.store.ClearCurrentID(ctx, identity); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistFailed, err)
		}
		return nil
	}

	ws.currentID = remaining[0].ID
	if err := s.store.SetCurrentID(ctx, identity, ws.currentID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	return nil
}

// SendMessage appends a user message to the current session, obtains a reply
// and appends it as an assistant message. Reply failures become the assistant
// message text; only precondition and persistence failures are returned.
func (s *Service) SendMessage(ctx context.Context, identity, content string) (SendResult, error) {
	if identity == "" {
		return SendResult{}, ErrAuthRequired
	}
	if strings.TrimSpace(content) == "" {
		return SendResult{}, ErrEmptyMessage
	}

	s.mu.Lock()
	ws, err := s.workspaceLocked(ctx, identity)
	if err != nil {
		s.mu.Unlock()
		return SendResult{}, err
	}
	idx := ws.indexOf(ws.currentID)
	if idx < 0 {
		s.mu.Unlock()
		return SendResult{}, ErrNoCurrentSession
	}
	ws.lastErr = ""

	session := ws.sessions[idx].Clone()
	firstMessage := len(session.Messages) == 0
	userMessage := s.newMessage(chat.RoleUser, content)
	session.Messages = append(session.Messages, userMessage)
	touch(&session, userMessage.Timestamp)
	if firstMessage {
		session.Title = chat.TitleFromContent(content)
	}
	if err := s.replaceLocked(ctx, identity, ws, session); err != nil {
		ws.lastErr = SendFailureText
		s.mu.Unlock()
		return SendResult{}, err
	}

	history := chat.WithoutSystem(session.Messages)
	ws.loading++
	s.mu.Unlock()

	replyText := s.reply(ctx, content, history)

	// 回复到达时请求可能已取消，落盘仍需完成以保证消息成对。
	persistCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	ws.loading--

	current, err := s.workspaceLocked(persistCtx, identity)
	if err != nil {
		ws.lastErr = SendFailureText
		return SendResult{}, err
	}
	idx = current.indexOf(session.ID)
	if idx < 0 {
		log.Printf("[chat] session %s removed before reply arrived", session.ID)
		return SendResult{Session: session, UserMessage: userMessage}, ErrSessionNotFound
	}

	latest := current.sessions[idx].Clone()
	assistantMessage := s.newMessage(chat.RoleAssistant, replyText)
	latest.Messages = append(latest.Messages, assistantMessage)
	touch(&latest, assistantMessage.Timestamp)
	if err := s.replaceLocked(persistCtx, identity, current, latest); err != nil {
		current.lastErr = SendFailureText
		return SendResult{}, err
	}

	return SendResult{
		Session:          latest.Clone(),
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	}, nil
}

// Close drops identity's in-memory workspace; persisted state is kept.
func (s *Service) Close(identity string) {
	s.mu.Lock()
	delete(s.workspaces, identity)
	s.mu.Unlock()
}

func (s *Service) reply(ctx context.Context, content string, history []chat.Message) string {
	var (
		text string
		err  error
	)
	if s.replies != nil && s.replies.HasCredential(ctx) {
		text, err = s.replies.GenerateReply(ctx, history)
	} else if s.fallback != nil {
		text, err = s.fallback.Respond(ctx, content)
	} else {
		err = errors.New("no reply source configured")
	}

	if err != nil {
		log.Printf("[chat] reply failed: %v", err)
		return ReplyFailurePrefix + err.Error()
	}
	return text
}

// workspaceLocked returns identity's workspace, loading it on first use.
func (s *Service) workspaceLocked(ctx context.Context, identity string) (*workspace, error) {
	if ws, ok := s.workspaces[identity]; ok {
		return ws, nil
	}

	sessions, err := s.store.Load(ctx, identity)
	if err != nil {
		return nil, err
	}
	currentID, _, err := s.store.CurrentID(ctx, identity)
	if err != nil {
		return nil, err
	}

	ws := &workspace{sessions: sessions, currentID: currentID}
	if ws.indexOf(currentID) < 0 {
		s.restorePointerLocked(ctx, identity, ws)
	}
	s.workspaces[identity] = ws
	return ws, nil
}

// restorePointerLocked promotes the first session when the persisted pointer is
// missing or stale.
func (s *Service) restorePointerLocked(ctx context.Context, identity string, ws *workspace) {
	stale := ws.currentID != ""
	if len(ws.sessions) == 0 {
		ws.currentID = ""
		if stale {
			if err := s.store.ClearCurrentID(ctx, identity); err != nil {
				log.Printf("[chat] clear stale pointer for %s: %v", identity, err)
			}
		}
		return
	}

	ws.currentID = ws.sessions[0].ID
	if err := s.store.SetCurrentID(ctx, identity, ws.currentID); err != nil {
		log.Printf("[chat] restore pointer for %s: %v", identity, err)
	}
}

func (s *Service) createLocked(ctx context.Context, identity string, ws *workspace) (chat.Session, error) {
	ts := s.now().UnixMilli()
	session := chat.Session{
		ID:        s.newID(),
		Title:     chat.DefaultTitle(len(ws.sessions) + 1),
		Messages:  []chat.Message{},
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	sessions := make([]chat.Session, 0, len(ws.sessions)+1)
	sessions = append(sessions, session)
	sessions = append(sessions, ws.sessions...)
	if err := s.store.Save(ctx, identity, sessions); err != nil {
		return chat.Session{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	ws.sessions = sessions

	if err := s.store.SetCurrentID(ctx, identity, session.ID); err != nil {
		return chat.Session{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	ws.currentID = session.ID

	log.Printf("[chat] created session %s for %s", session.ID, identity)
	return session.Clone(), nil
}

// replaceLocked persists the collection with session swapped in, then commits it in memory.
func (s *Service) replaceLocked(ctx context.Context, identity string, ws *workspace, session chat.Session) error {
	idx := ws.indexOf(session.ID)
	if idx < 0 {
		return ErrSessionNotFound
	}

	sessions := make([]chat.Session, len(ws.sessions))
	copy(sessions, ws.sessions)
	sessions[idx] = session
	if err := s.store.Save(ctx, identity, sessions); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	ws.sessions = sessions
	return nil
}

func (s *Service) newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        "msg_" + uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: s.now().UnixMilli(),
	}
}

func touch(session *chat.Session, ts int64) {
	if ts < session.CreatedAt {
		ts = session.CreatedAt
	}
	if ts > session.UpdatedAt {
		session.UpdatedAt = ts
	}
}
