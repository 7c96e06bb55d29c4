package ai

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/startup-vision/backend/internal/model/chat"
)

// AnalystSystemPrompt is prepended to every completion request.
const AnalystSystemPrompt = "You are an AI business analyst assistant called StartupVision, specialized in helping students evaluate and improve business ideas. Provide constructive feedback, ask clarifying questions, and suggest improvements to business concepts. Be supportive but honest about potential challenges."

const historyKey = "history"

// newAnalystTemplate renders the fixed system instruction followed by the conversation history.
func newAnalystTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(AnalystSystemPrompt),
		schema.MessagesPlaceholder(historyKey, false),
	)
}

// toSchemaMessages maps stored messages onto eino messages, preserving order.
func toSchemaMessages(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		var role schema.RoleType
		switch msg.Role {
		case chat.RoleAssistant:
			role = schema.Assistant
		case chat.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		history = append(history, &schema.Message{Role: role, Content: msg.Content})
	}
	return history
}
