package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/startup-vision/backend/internal/config"
	"github.com/zhouzirui/startup-vision/backend/internal/handler"
	"github.com/zhouzirui/startup-vision/backend/internal/model/profile"
	"github.com/zhouzirui/startup-vision/backend/internal/secret"
	"github.com/zhouzirui/startup-vision/backend/internal/service/ai"
	"github.com/zhouzirui/startup-vision/backend/internal/service/auth"
	"github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/backend"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := backend.Open(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	var sealer secret.Sealer
	if cfg.AI.SealKey != "" {
		aesSealer, err := secret.NewAESGCMSealerFromBase64(cfg.AI.SealKey)
		if err != nil {
			log.Fatalf("invalid AI_CREDENTIAL_SEAL_KEY: %v", err)
		}
		sealer = aesSealer
	} else {
		log.Println("warning: AI_CREDENTIAL_SEAL_KEY 未配置，API Key 将以明文保存")
	}

	aiService := ai.NewService(ai.NewCredentialStore(store, sealer), ai.ModelFactoryFor(cfg.AI), cfg.AI.APIKey)
	if aiService.HasCredential(ctx) {
		log.Printf("AI service ready (provider=%s, model=%s)", cfg.AI.Provider, cfg.AI.Model)
	} else {
		log.Println("API Key 未配置，回复将使用本地兜底文案")
	}

	chatService := chat.NewService(chat.NewSessionStore(store), aiService, ai.NewFallbackResponder(cfg.AI.FallbackDelay))
	authService := auth.NewService(profile.NewKVStore(store), cfg.Auth.BcryptCost)

	tokenSecret := cfg.Auth.TokenSecret
	if tokenSecret == "" {
		tokenSecret = randomSecret()
		log.Println("warning: AUTH_TOKEN_SECRET 未配置，已生成临时密钥，重启后需重新登录")
	}

	router := handler.NewRouter(handler.Services{
		Chat:   chatService,
		AI:     aiService,
		Auth:   authService,
		Tokens: auth.NewTokenIssuer(tokenSecret, cfg.Auth.TokenTTL),
	})

	startServer(ctx, cfg.Server, router)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("failed to generate token secret: %v", err)
	}
	return hex.EncodeToString(buf)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("StartupVision backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
