package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenAIClient はAzure OpenAI REST APIへのリクエストを管理します。
// endpointには実際のAzure OpenAIのエンドポイント、またはリクエストを転送するプロキシを設定します。
type OpenAIClient struct {
	endpoint           string
	apiKey             string
	apiVersion         string
	chatDeploymentName string
	httpClient         *http.Client
}

// NewOpenAIClient は新しいAzure OpenAIクライアントを作成します。
// chatDeploymentNameはリクエストでデプロイが指定されなかった場合に使われます。
func NewOpenAIClient(endpoint, apiKey, apiVersion, chatDeploymentName, proxyURL string) *OpenAIClient {
	transport := &http.Transport{}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxy)
			log.Println("HTTPクライアントにプロキシを設定しました:", proxyURL)
		} else {
			log.Printf("警告: 無効なプロキシURLです。プロキシは使用されません: %v", err)
		}
	}

	return &OpenAIClient{
		endpoint:           endpoint,
		apiKey:             apiKey,
		apiVersion:         apiVersion,
		chatDeploymentName: chatDeploymentName,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
	}
}

// Configured エンドポイントとAPIキーが設定されているか
func (c *OpenAIClient) Configured() bool {
	return c.endpoint != "" && c.apiKey != ""
}

// --- データ構造定義 ---

// ChatMessage チャットメッセージ
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest チャット補完リクエスト
type ChatCompletionRequest struct {
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// ChatCompletionResponse チャット補完レスポンス
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// SpeechRequest 音声合成リクエスト
type SpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// TranscriptionResponse 文字起こしレスポンス
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// --- メソッド定義 ---

// deploymentURL デプロイ名と操作からリクエストURLを組み立てる
func (c *OpenAIClient) deploymentURL(deployment, operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		strings.TrimSuffix(c.endpoint, "/"), url.PathEscape(deployment), operation, c.apiVersion)
}

// ChatCompletion チャット補完を実行。deploymentが空の場合は既定のデプロイを使用
func (c *OpenAIClient) ChatCompletion(ctx context.Context, deployment string, messages []ChatMessage, maxTokens int, temperature float32, topP float32) (*ChatCompletionResponse, error) {
	if deployment == "" {
		deployment = c.chatDeploymentName
	}

	request := ChatCompletionRequest{
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("リクエストのJSON化に失敗: %w", err)
	}

	respBody, err := c.doRequest(ctx, c.deploymentURL(deployment, "chat/completions"), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Azure OpenAI API 呼び出しに失敗: %w", err)
	}

	var response ChatCompletionResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("レスポンスのJSON解析に失敗: %w", err)
	}
	return &response, nil
}

// Speech はテキストを音声（mp3）に変換します。
func (c *OpenAIClient) Speech(ctx context.Context, deployment, voice, text string) ([]byte, error) {
	body, err := json.Marshal(SpeechRequest{Model: deployment, Input: text, Voice: voice, ResponseFormat: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("リクエストのJSON化に失敗: %w", err)
	}

	audio, err := c.doRequest(ctx, c.deploymentURL(deployment, "audio/speech"), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("音声合成に失敗: %w", err)
	}
	return audio, nil
}

// Transcribe は音声ファイルをテキストに変換します。
func (c *OpenAIClient) Transcribe(ctx context.Context, deployment, filename string, audio io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("マルチパートの作成に失敗: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("音声データの読み取りに失敗: %w", err)
	}
	if err := w.WriteField("model", deployment); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	respBody, err := c.doRequest(ctx, c.deploymentURL(deployment, "audio/transcriptions"), w.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("文字起こしに失敗: %w", err)
	}

	var tr TranscriptionResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("レスポンスのJSON解析に失敗: %w", err)
	}
	return tr.Text, nil
}

// doRequest はHTTPリクエストの実行と基本的なレスポンス処理を行う共通メソッドです。
// 成功時はレスポンスボディをそのまま返します。
func (c *OpenAIClient) doRequest(ctx context.Context, url, contentType string, body io.Reader) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("API key が設定されていません")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの実行に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("Azure OpenAI API エラー (status: %d): %s", resp.StatusCode, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("Azure OpenAI API エラー (status: %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
