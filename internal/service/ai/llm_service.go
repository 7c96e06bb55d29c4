package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"

	"github.com/zhouzirui/startup-vision/backend/internal/config"
	"github.com/zhouzirui/startup-vision/backend/internal/model/chat"
)

var (
	ErrMissingCredential = errors.New("api key not set, please set your API key in settings")
	ErrEmptyCredential   = errors.New("api key must not be empty")
)

// generateFailure 是回复失败时展示给用户的错误前缀。
const generateFailure = "Failed to generate response"

// ModelFactory builds a chat model authenticated with apiKey.
type ModelFactory func(ctx context.Context, apiKey string) (model.BaseChatModel, error)

// Service turns conversation history into a single analyst reply.
// It owns the credential; nothing else reads or mutates it.
type Service struct {
	mu          sync.RWMutex
	apiKey      string
	credentials *CredentialStore
	newModel    ModelFactory
	template    prompt.ChatTemplate
}

// NewService creates a Service. initialKey seeds the in-memory credential
// without persisting it.
func NewService(credentials *CredentialStore, newModel ModelFactory, initialKey string) *Service {
	return &Service{
		apiKey:      strings.TrimSpace(initialKey),
		credentials: credentials,
		newModel:    newModel,
		template:    newAnalystTemplate(),
	}
}

// HasCredential reports whether a credential is available in memory or storage.
func (s *Service) HasCredential(ctx context.Context) bool {
	return s.credential(ctx) != ""
}

// SetCredential stores key in memory and in persisted storage.
func (s *Service) SetCredential(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credentials != nil {
		if err := s.credentials.Save(ctx, key); err != nil {
			return err
		}
	}
	s.apiKey = key
	return nil
}

// ClearCredential forgets the credential and removes the persisted entry.
func (s *Service) ClearCredential(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = ""
	if s.credentials == nil {
		return nil
	}
	return s.credentials.Remove(ctx)
}

func (s *Service) credential(ctx context.Context) string {
	s.mu.RLock()
	key := s.apiKey
	s.mu.RUnlock()
	if key != "" || s.credentials == nil {
		return key
	}

	stored, err := s.credentials.Load(ctx)
	if err != nil {
		log.Printf("[ai] failed to load stored credential: %v", err)
		return ""
	}
	if stored == "" {
		return ""
	}

	s.mu.Lock()
	if s.apiKey == "" {
		s.apiKey = stored
	}
	key = s.apiKey
	s.mu.Unlock()
	return key
}

// GenerateReply sends the analyst instruction plus messages to the configured
// model and returns the generated text.
func (s *Service) GenerateReply(ctx context.Context, messages []chat.Message) (string, error) {
	apiKey := s.credential(ctx)
	if apiKey == "" {
		return "", ErrMissingCredential
	}

	chatModel, err := s.newModel(ctx, apiKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", generateFailure, err)
	}

	input, err := s.template.Format(ctx, map[string]any{
		historyKey: toSchemaMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", generateFailure, err)
	}

	response, err := chatModel.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%s: %w", generateFailure, err)
	}
	if response == nil {
		return "", fmt.Errorf("%s: %w", generateFailure, ErrNoResponse)
	}

	log.Printf("[ai] generated reply history=%d length=%d", len(messages), len(response.Content))
	return response.Content, nil
}

// ModelFactoryFor picks the model implementation for cfg.Provider.
func ModelFactoryFor(cfg config.AIConfig) ModelFactory {
	if cfg.Provider == config.ProviderArk {
		return cfg.NewChatModel
	}

	return NewCompletionModelFactory(CompletionOptions{
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
}
