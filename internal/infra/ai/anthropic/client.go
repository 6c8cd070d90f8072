package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/prompt"
)

const (
	DefaultModel = "claude-sonnet-4-5-20250929"
	maxTokens    = 4096
)

type Client struct {
	client sdk.Client
	Model  string
}

func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ai.ErrNotConfigured
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: sdk.NewClient(option.WithAPIKey(apiKey)), Model: model}, nil
}

func (c *Client) Analyze(ctx context.Context, req ai.Request) (string, error) {
	params, err := Params(req, c.Model)
	if err != nil {
		return "", err
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", eris.Wrap(ai.ErrQuotaExceeded, err.Error())
		}
		if ai.LooksLikeQuota(err.Error()) {
			return "", eris.Wrap(ai.ErrQuotaExceeded, err.Error())
		}
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := ExtractJSON(sb.String())
	if text == "" {
		return "", ai.ErrMalformedResponse
	}
	return text, nil
}

// Params builds the message request. Claude has no response schema option, so
// the schema rides along in the instruction text.
func Params(req ai.Request, model string) (sdk.MessageNewParams, error) {
	schema, err := json.Marshal(prompt.AnalysisSchema())
	if err != nil {
		return sdk.MessageNewParams{}, eris.Wrap(err, "marshal analysis schema")
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsText() {
			blocks = append(blocks, sdk.NewTextBlock(p.Text+"\n\nJSON schema:\n"+string(schema)))
			continue
		}
		if repair.KindForMIME(p.MIMEType) == repair.MediaVideo {
			return sdk.MessageNewParams{}, eris.Wrapf(ai.ErrUnsupportedMedia, "anthropic: %s", p.MIMEType)
		}
		blocks = append(blocks, sdk.NewImageBlockBase64(p.MIMEType, p.Data))
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	return params, nil
}

// ExtractJSON trims markdown fences and any prose around the outermost object.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
