package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"maturity-navigator-api/pkg/azure"
	"maturity-navigator-api/pkg/models"
)

// ErrEmptyCompletion モデルが空の応答を返した
var ErrEmptyCompletion = errors.New("AIから有効な回答が得られませんでした")

// ChatClient はチャット補完を実行するクライアントです。*azure.OpenAIClient が実装します。
type ChatClient interface {
	ChatCompletion(ctx context.Context, deployment string, messages []azure.ChatMessage, maxTokens int, temperature float32, topP float32) (*azure.ChatCompletionResponse, error)
}

// Completer はシステムプロンプトと会話履歴から次の発話を生成します。
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, turns []models.ConversationTurn, cfg models.ModelConfig) (string, error)
}

// AzureOpenAIService Azure OpenAI API サービス
type AzureOpenAIService struct {
	client  ChatClient
	timeout time.Duration
}

// NewAzureOpenAIService 新しいAzure OpenAI サービスを作成
func NewAzureOpenAIService(endpoint, apiKey, apiVersion, chatDeploymentName string) *AzureOpenAIService {
	return NewAzureOpenAIServiceWithClient(azure.NewOpenAIClient(endpoint, apiKey, apiVersion, chatDeploymentName, ""))
}

// NewAzureOpenAIServiceWithClient 任意のクライアントでサービスを作成（テスト用）
func NewAzureOpenAIServiceWithClient(client ChatClient) *AzureOpenAIService {
	return &AzureOpenAIService{client: client, timeout: 30 * time.Second}
}

// Complete はsystemPromptを先頭に付けた会話をモデルに送り、応答テキストを返します。
// turnsにsystemロールが含まれる場合はそのまま送ります。
func (aos *AzureOpenAIService) Complete(ctx context.Context, systemPrompt string, turns []models.ConversationTurn, cfg models.ModelConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, aos.timeout)
	defer cancel()

	messages := make([]azure.ChatMessage, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, azure.ChatMessage{Role: string(models.RoleSystem), Content: systemPrompt})
	}
	for _, t := range turns {
		messages = append(messages, azure.ChatMessage{Role: string(t.Role), Content: t.Content})
	}

	response, err := aos.client.ChatCompletion(ctx, cfg.ModelID, messages, cfg.MaxTokens, cfg.Temperature, 0.95)
	if err != nil {
		return "", fmt.Errorf("Azure OpenAI API 呼び出しに失敗: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
