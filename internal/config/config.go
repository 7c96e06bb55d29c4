package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// 支持的回复模型提供方。
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// 支持的存储后端。
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Auth    AuthConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.AI.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("invalid AUTH_TOKEN_TTL value %q", cfg.Auth.TokenTTL)
	}

	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// AIConfig 描述回复生成相关配置。
type AIConfig struct {
	Provider string `env:"AI_PROVIDER" envDefault:"openai"`
	// APIKey 为启动时预置的凭证，用户也可以在运行时通过接口设置。
	APIKey        string        `env:"AI_API_KEY"`
	BaseURL       string        `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model         string        `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature   float32       `env:"AI_TEMPERATURE" envDefault:"0.7"`
	MaxTokens     int           `env:"AI_MAX_TOKENS" envDefault:"1000"`
	Timeout       time.Duration `env:"AI_TIMEOUT" envDefault:"0s"`
	FallbackDelay time.Duration `env:"AI_FALLBACK_DELAY" envDefault:"1s"`
	// SealKey 是 base64 编码的 AES 密钥，配置后凭证将加密落盘。
	SealKey    string `env:"AI_CREDENTIAL_SEAL_KEY"`
	ArkBaseURL string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion  string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

func (c AIConfig) validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderArk:
	default:
		return fmt.Errorf("invalid AI_PROVIDER value %q", c.Provider)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("AI_MODEL is required")
	}
	if c.Provider == ProviderOpenAI && strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("AI_BASE_URL is required for provider %s", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("invalid AI_TEMPERATURE value %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("invalid AI_MAX_TOKENS value %d", c.MaxTokens)
	}
	if c.FallbackDelay < 0 || c.Timeout < 0 {
		return fmt.Errorf("AI durations must not be negative")
	}
	return nil
}

// NewChatModel 使用 Ark 配置和用户凭证创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context, apiKey string) (model.BaseChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("Ark 凭证缺失")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      apiKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	chatModel, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return chatModel, nil
}

// StorageConfig 描述键值存储后端。
type StorageConfig struct {
	Backend       string `env:"STORAGE_BACKEND" envDefault:"memory"`
	SQLitePath    string `env:"STORAGE_SQLITE_PATH" envDefault:"data/startup-vision.db"`
	RedisAddr     string `env:"STORAGE_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"STORAGE_REDIS_PASSWORD"`
	RedisDB       int    `env:"STORAGE_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"STORAGE_REDIS_PREFIX"`
}

func (c StorageConfig) validate() error {
	switch c.Backend {
	case StorageMemory, StorageSQLite, StorageRedis:
		return nil
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND value %q", c.Backend)
	}
}

// AuthConfig 描述模拟身份令牌的配置。
type AuthConfig struct {
	// TokenSecret 为空时服务启动会生成一次性随机密钥，重启后令牌失效。
	TokenSecret string        `env:"AUTH_TOKEN_SECRET"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	BcryptCost  int           `env:"AUTH_BCRYPT_COST" envDefault:"10"`
}
