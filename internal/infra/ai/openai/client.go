package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/prompt"
)

const (
	DefaultModel = "gpt-4o"
	maxTokens    = 4096
)

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ai.ErrNotConfigured
	}
	return &Client{Client: openai.NewClient(apiKey), Model: model}, nil
}

func (c *Client) Analyze(ctx context.Context, in ai.Request) (string, error) {
	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	req, err := ChatRequest(in, model)
	if err != nil {
		return "", err
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		if isQuota(err) {
			return "", eris.Wrap(ai.ErrQuotaExceeded, err.Error())
		}
		return "", eris.Wrap(err, "failed to create chat completion")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ai.ErrMalformedResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatRequest maps media to image_url parts carrying data URLs. Video is not
// accepted by chat completions.
func ChatRequest(in ai.Request, model string) (openai.ChatCompletionRequest, error) {
	parts := make([]openai.ChatMessagePart, 0, len(in.Parts))
	for _, p := range in.Parts {
		if p.IsText() {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
			continue
		}
		if repair.KindForMIME(p.MIMEType) == repair.MediaVideo {
			return openai.ChatCompletionRequest{}, eris.Wrapf(ai.ErrUnsupportedMedia, "openai: %s", p.MIMEType)
		}
		item := repair.MediaItem{MIMEType: p.MIMEType, Data: p.Data}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: item.DataURL(), Detail: openai.ImageURLDetailAuto},
		})
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "repair_analysis",
				Schema: prompt.AnalysisSchema(),
			},
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: in.System},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	// reasoning models (o1/o3/o4/gpt-5*) pakai MaxCompletionTokens
	if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}
	return req, nil
}

func isQuota(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	return ai.LooksLikeQuota(err.Error())
}
