package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/startup-vision/backend/internal/model/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/secret"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/memory"
)

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Temperature float32             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

type capturedRequest struct {
	path string
	auth string
	body completionRequest
}

func newCompletionServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func newTestService(baseURL, key string) (*Service, *memory.Store) {
	store := memory.NewStore()
	factory := NewCompletionModelFactory(CompletionOptions{
		BaseURL:     baseURL,
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1000,
	})
	return NewService(NewCredentialStore(store, nil), factory, key), store
}

func TestGenerateReplySendsAnalystRequest(t *testing.T) {
	server, captured := newCompletionServer(t, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Great idea."},"finish_reason":"stop"}]}`)
	svc, _ := newTestService(server.URL, "sk-test")

	history := []chat.Message{
		{ID: "1", Role: chat.RoleUser, Content: "Hello"},
		{ID: "2", Role: chat.RoleAssistant, Content: "Hi there"},
		{ID: "3", Role: chat.RoleUser, Content: "Rate my idea"},
	}

	reply, err := svc.GenerateReply(context.Background(), history)
	if err != nil {
		t.Fatalf("GenerateReply err: %v", err)
	}
	if reply != "Great idea." {
		t.Fatalf("unexpected reply %q", reply)
	}

	if captured.path != "/chat/completions" {
		t.Fatalf("unexpected request path %q", captured.path)
	}
	if captured.auth != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header %q", captured.auth)
	}
	body := captured.body
	if body.Model != "gpt-4o-mini" || body.Temperature != 0.7 || body.MaxTokens != 1000 {
		t.Fatalf("unexpected request parameters: %+v", body)
	}
	if len(body.Messages) != 4 {
		t.Fatalf("expected system + 3 history messages, got %d", len(body.Messages))
	}
	if body.Messages[0].Role != "system" || body.Messages[0].Content != AnalystSystemPrompt {
		t.Fatalf("expected analyst system prompt first, got %+v", body.Messages[0])
	}
	if body.Messages[2].Role != "assistant" || body.Messages[3].Content != "Rate my idea" {
		t.Fatalf("history not forwarded in order: %+v", body.Messages)
	}
}

func TestGenerateReplyUsesEmbeddedErrorMessage(t *testing.T) {
	server, _ := newCompletionServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`)
	svc, _ := newTestService(server.URL, "sk-bad")

	_, err := svc.GenerateReply(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Incorrect API key provided" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if err.Error() != "Failed to generate response: Incorrect API key provided" {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestGenerateReplyGenericFailureMessage(t *testing.T) {
	server, _ := newCompletionServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)
	svc, _ := newTestService(server.URL, "sk-test")

	_, err := svc.GenerateReply(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
	if err == nil || err.Error() != "Failed to generate response: API Error (502): Request failed" {
		t.Fatalf("expected generic failure message, got %v", err)
	}
}

func TestGenerateReplyWithoutChoices(t *testing.T) {
	server, _ := newCompletionServer(t, http.StatusOK, `{"choices":[]}`)
	svc, _ := newTestService(server.URL, "sk-test")

	_, err := svc.GenerateReply(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestGenerateReplyRequiresCredential(t *testing.T) {
	svc, _ := newTestService("http://127.0.0.1:0", "")

	if svc.HasCredential(context.Background()) {
		t.Fatal("expected no credential")
	}
	if _, err := svc.GenerateReply(context.Background(), nil); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}

func TestCredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService("http://127.0.0.1:0", "")

	if err := svc.SetCredential(ctx, "   "); !errors.Is(err, ErrEmptyCredential) {
		t.Fatalf("expected ErrEmptyCredential, got %v", err)
	}

	if err := svc.SetCredential(ctx, " sk-live "); err != nil {
		t.Fatalf("SetCredential err: %v", err)
	}
	stored, ok, _ := store.Get(ctx, CredentialKey)
	if !ok || stored != "sk-live" {
		t.Fatalf("expected persisted credential, got %q %v", stored, ok)
	}

	if err := svc.ClearCredential(ctx); err != nil {
		t.Fatalf("ClearCredential err: %v", err)
	}
	if _, ok, _ := store.Get(ctx, CredentialKey); ok {
		t.Fatal("expected persisted credential to be removed")
	}
	if svc.HasCredential(ctx) {
		t.Fatal("expected credential to be cleared")
	}
}

func TestHasCredentialFallsBackToStorage(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if err := store.Set(ctx, CredentialKey, "sk-from-storage"); err != nil {
		t.Fatalf("Set err: %v", err)
	}

	svc := NewService(NewCredentialStore(store, nil), NewCompletionModelFactory(CompletionOptions{}), "")
	if !svc.HasCredential(ctx) {
		t.Fatal("expected stored credential to be picked up")
	}
}

func TestCredentialStoreSealsValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	sealer, err := secret.NewAESGCMSealer(bytes.Repeat([]byte{3}, 32))
	if err != nil {
		t.Fatalf("NewAESGCMSealer err: %v", err)
	}
	credentials := NewCredentialStore(store, sealer)

	if err := credentials.Save(ctx, "sk-secret"); err != nil {
		t.Fatalf("Save err: %v", err)
	}
	raw, _, _ := store.Get(ctx, CredentialKey)
	if raw == "sk-secret" {
		t.Fatal("credential stored in plaintext")
	}

	loaded, err := credentials.Load(ctx)
	if err != nil || loaded != "sk-secret" {
		t.Fatalf("unexpected Load result: %q %v", loaded, err)
	}
}
