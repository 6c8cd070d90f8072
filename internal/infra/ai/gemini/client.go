package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/prompt"
)

const DefaultModel = "gemini-2.5-flash"

type Client struct {
	models *genai.Models
	Model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ai.ErrNotConfigured
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "create gemini client")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: c.Models, Model: model}, nil
}

func (c *Client) Analyze(ctx context.Context, req ai.Request) (string, error) {
	contents, err := Contents(req)
	if err != nil {
		return "", err
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ToGenai(prompt.AnalysisSchema()),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.models.GenerateContent(ctx, c.Model, contents, cfg)
	if err != nil {
		if isQuota(err) {
			return "", eris.Wrap(ai.ErrQuotaExceeded, err.Error())
		}
		return "", eris.Wrap(err, "gemini generate content")
	}
	text := resp.Text()
	if text == "" {
		return "", ai.ErrMalformedResponse
	}
	return text, nil
}

// Contents maps a request to a single user turn; media stays inline.
func Contents(req ai.Request) ([]*genai.Content, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsText() {
			parts = append(parts, genai.NewPartFromText(p.Text))
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, eris.Wrapf(err, "decode %s payload", p.MIMEType)
		}
		parts = append(parts, genai.NewPartFromBytes(raw, p.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// ToGenai converts the neutral schema into the SDK's schema type.
func ToGenai(s *prompt.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description:      s.Description,
		Enum:             s.Enum,
		Required:         s.Required,
		PropertyOrdering: s.Order,
		Items:            ToGenai(s.Items),
	}
	switch s.Type {
	case prompt.TypeObject:
		out.Type = genai.TypeObject
	case prompt.TypeArray:
		out.Type = genai.TypeArray
	case prompt.TypeInteger:
		out.Type = genai.TypeInteger
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = ToGenai(v)
		}
	}
	return out
}

func isQuota(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	return ai.LooksLikeQuota(err.Error())
}
