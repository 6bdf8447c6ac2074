package provider

import (
	"context"
	"errors"
)

// ErrEmptyResponse 模型返回了空结果
// ErrEmptyResponse is returned when the model sends no choices
var ErrEmptyResponse = errors.New("model returned no choices")

// Message 一条对话消息
// Message is one chat message
type Message struct {
	Role    string
	Content string
}

// CompletionRequest 封装一次模型请求
// CompletionRequest wraps a single model call
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// Usage token 用量统计
// Usage reports token consumption
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse 完整响应
// CompletionResponse is the complete response
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// ModelInfo 模型基本信息
// ModelInfo describes a model
type ModelInfo struct {
	ID      string
	OwnedBy string
}

// Provider 文本生成后端接口
// Provider is the text-generation backend interface
type Provider interface {
	// Complete 发送一次非流式请求
	// Complete sends a single non-streaming request
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// ListModels 列出可用模型
	// ListModels lists available models
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Name 返回 provider 名称
	// Name returns the provider name
	Name() string

	// CurrentModel 返回当前活跃模型
	// CurrentModel returns the current active model
	CurrentModel() string

	// SetModel 切换活跃模型
	// SetModel switches the active model
	SetModel(model string) error
}
