package openai

import (
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
)

func TestChatRequest(t *testing.T) {
	in := ai.Request{
		System: "sys",
		Parts:  []ai.Part{{MIMEType: "image/png", Data: "Zm9v"}, {Text: "fix"}},
	}
	req, err := ChatRequest(in, DefaultModel)
	require.NoError(t, err)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "sys", req.Messages[0].Content)

	parts := req.Messages[1].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, "data:image/png;base64,Zm9v", parts[0].ImageURL.URL)
	assert.Equal(t, "fix", parts[1].Text)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONSchema, req.ResponseFormat.Type)
	assert.Equal(t, maxTokens, req.MaxTokens)
}

func TestChatRequest_ReasoningModel(t *testing.T) {
	req, err := ChatRequest(ai.Request{Parts: []ai.Part{{Text: "x"}}}, "o3-mini")
	require.NoError(t, err)
	assert.Equal(t, maxTokens, req.MaxCompletionTokens)
	assert.Zero(t, req.MaxTokens)
}

func TestChatRequest_RejectsVideo(t *testing.T) {
	_, err := ChatRequest(ai.Request{Parts: []ai.Part{{MIMEType: "video/webm", Data: "Zm9v"}}}, DefaultModel)
	assert.ErrorIs(t, err, ai.ErrUnsupportedMedia)
}

func TestIsQuota(t *testing.T) {
	assert.True(t, isQuota(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, isQuota(errors.New("You exceeded your current quota")))
	assert.False(t, isQuota(errors.New("bad gateway")))
}
