package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assetlib/internal/apperr"
	"assetlib/internal/logger"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	chatPath           = "/chat/completions"
	embeddingsPath     = "/embeddings"
)

const taggingSystemPrompt = `You are an asset tagging system for game development. Analyze the given image and return a JSON object with:
1. "tags": array of objects with "name" (lowercase, English), "category" (one of: content, style, color, mood, use_case), "confidence" (0-1)
2. "description": one concise English sentence describing the asset
3. "suggested_name": a descriptive filename in snake_case without extension

Return ONLY valid JSON, no markdown.`

const taggingUserPrompt = "Analyze this game asset image. Return JSON with tags, description, and suggested_name."

type OpenAIConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// OpenAI talks to any OpenAI-compatible chat and embeddings API.
type OpenAI struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	log        *logger.Logger
}

type OpenAIOption func(*OpenAI)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(o *OpenAI) {
		if client != nil {
			o.httpClient = client
		}
	}
}

func NewOpenAI(cfg OpenAIConfig, log *logger.Logger, opts ...OpenAIOption) *OpenAI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	o := &OpenAI{
		cfg: OpenAIConfig{
			Endpoint:       strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			EmbeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
			Timeout:        timeout,
		},
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("provider", "openai"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) EmbeddingModel() string { return o.cfg.EmbeddingModel }

// endpointURL appends suffix unless the configured endpoint already points at it.
func (o *OpenAI) endpointURL(suffix string) string {
	if strings.Contains(o.cfg.Endpoint, suffix) {
		return o.cfg.Endpoint
	}
	return o.cfg.Endpoint + suffix
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

func (o *OpenAI) AnalyzeImage(ctx context.Context, data []byte, mime string) (*Analysis, error) {
	if mime == "" {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	temp := 0.3
	req := chatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: taggingSystemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				{Type: "text", Text: taggingUserPrompt},
			}},
		},
		MaxTokens:   1000,
		Temperature: &temp,
	}

	var resp chatCompletionResponse
	if err := o.post(ctx, o.endpointURL(chatPath), req, &resp); err != nil {
		return nil, apperr.Provider("analyze image", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, apperr.Provider("analyze image: no content in response", nil)
	}

	clean := StripCodeFence(resp.Choices[0].Message.Content)
	var analysis Analysis
	if err := json.Unmarshal([]byte(clean), &analysis); err != nil {
		return nil, apperr.Provider("analyze image: parse answer", err)
	}
	return &analysis, nil
}

func (o *OpenAI) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if o.cfg.EmbeddingModel == "" {
		return nil, apperr.Provider("embed text: no embedding model configured", nil)
	}
	var resp embeddingResponse
	err := o.post(ctx, o.endpointURL(embeddingsPath), embeddingRequest{Model: o.cfg.EmbeddingModel, Input: text}, &resp)
	if err != nil {
		return nil, apperr.Provider("embed text", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, apperr.Provider("embed text: no embedding in response", nil)
	}
	return resp.Data[0].Embedding, nil
}

// TestConnection sends a tiny chat request. A non-2xx answer is reported as
// false; only transport failures are errors.
func (o *OpenAI) TestConnection(ctx context.Context) (bool, error) {
	req := chatCompletionRequest{
		Model:     o.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Hi"}},
		MaxTokens: 5,
	}
	err := o.post(ctx, o.endpointURL(chatPath), req, nil)
	if err == nil {
		return true, nil
	}
	if statusErr, ok := err.(*httpStatusError); ok {
		o.log.Warn("connection test rejected", "status", statusErr.StatusCode, "body", statusErr.Body)
		return false, nil
	}
	return false, apperr.Provider("test connection", err)
}

func (o *OpenAI) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	o.log.Debug("ai request done", "url", url, "status", resp.StatusCode, "duration", time.Since(start))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StripCodeFence removes a surrounding ``` or ```json fence from a model answer.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
