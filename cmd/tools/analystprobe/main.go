package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/startup-vision/backend/internal/config"
	"github.com/zhouzirui/startup-vision/backend/internal/service/ai"
	"github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/memory"
)

const probeIdentity = "analystprobe"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	prompt := flag.String("prompt", "", "发送给分析师的消息")
	key := flag.String("key", "", "覆盖 AI_API_KEY，留空则使用配置；都为空时走兜底回复")
	timeout := flag.Duration("timeout", 60*time.Second, "请求超时时间")
	flag.Parse()

	if strings.TrimSpace(*prompt) == "" {
		flag.Usage()
		log.Fatal("请通过 -prompt 指定要发送的消息")
	}

	apiKey := cfg.AI.APIKey
	if *key != "" {
		apiKey = *key
	}

	// 探针只使用内存存储，不触碰服务的持久化数据
	store := memory.NewStore()
	aiSvc := ai.NewService(ai.NewCredentialStore(store, nil), ai.ModelFactoryFor(cfg.AI), apiKey)
	chatSvc := chat.NewService(chat.NewSessionStore(store), aiSvc, ai.NewFallbackResponder(cfg.AI.FallbackDelay))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, _, err := chatSvc.EnsureCurrentSession(ctx, probeIdentity); err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}

	mode := "fallback"
	if aiSvc.HasCredential(ctx) {
		mode = cfg.AI.Provider + "/" + cfg.AI.Model
	}
	log.Printf("发送消息 (mode=%s)", mode)

	start := time.Now()
	result, err := chatSvc.SendMessage(ctx, probeIdentity, *prompt)
	if err != nil {
		log.Fatalf("发送失败: %v", err)
	}

	log.Printf("收到回复，用时 %s，会话标题: %s", time.Since(start).Round(time.Millisecond), result.Session.Title)
	fmt.Println(result.AssistantMessage.Content)
}
