package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Server.Addr)
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("expected openai provider, got %s", cfg.AI.Provider)
	}
	if cfg.AI.Temperature != 0.7 || cfg.AI.MaxTokens != 1000 {
		t.Fatalf("unexpected completion limits: %v %d", cfg.AI.Temperature, cfg.AI.MaxTokens)
	}
	if cfg.AI.FallbackDelay != time.Second {
		t.Fatalf("expected 1s fallback delay, got %s", cfg.AI.FallbackDelay)
	}
	if cfg.Storage.Backend != StorageMemory {
		t.Fatalf("expected memory storage, got %s", cfg.Storage.Backend)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Fatalf("expected 24h token ttl, got %s", cfg.Auth.TokenTTL)
	}
}

func TestLoadAcceptsFullAddress(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"provider":    {"AI_PROVIDER": "gemini"},
		"backend":     {"STORAGE_BACKEND": "mongo"},
		"temperature": {"AI_TEMPERATURE": "3"},
		"max tokens":  {"AI_MAX_TOKENS": "0"},
		"port":        {"PORT": "80 80"},
		"not a float": {"AI_TEMPERATURE": "warm"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range vars {
				t.Setenv(key, value)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %v", vars)
			}
		})
	}
}

func TestNewChatModelRequiresKey(t *testing.T) {
	cfg := AIConfig{Provider: ProviderArk, Model: "doubao"}
	if _, err := cfg.NewChatModel(context.Background(), " "); err == nil {
		t.Fatal("expected error without credential")
	}
}
