package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sa_assessment_backend/internal/config"
	"sa_assessment_backend/internal/util"

	openai "github.com/sashabaranov/go-openai"
)

type ModelRequest struct {
	System          string
	Prompt          string
	MaxTokens       int
	ReasoningEffort string
}

type ModelResponse struct {
	Text  string
	Model string
}

// ModelClient 外部大模型调用的最小接口，编排器只依赖这一层
type ModelClient interface {
	Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

type openAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(cfg config.AIConfig) ModelClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (c *openAIClient) Generate(ctx context.Context, req ModelRequest) (*ModelResponse, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: req.MaxTokens,
		ReasoningEffort:     req.ReasoningEffort,
	})
	if err != nil {
		return nil, classifyModelError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("%w: empty completion", util.ErrModelTransient)
	}

	return &ModelResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
	}, nil
}

// classifyModelError 把底层错误归入可重试/不可重试两类。
// 超时、限流和 5xx 可重试；鉴权失败与请求格式错误不可重试
func classifyModelError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", util.ErrModelTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", util.ErrModelTransient, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", util.ErrModelTransient, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", util.ErrModelTransient, err)
		default:
			return fmt.Errorf("%w: %v", util.ErrModelFatal, err)
		}
	}

	// 其余（连接重置等网络层错误）按瞬时处理
	return fmt.Errorf("%w: %v", util.ErrModelTransient, err)
}
