package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/infra/ai/prompt"
)

func TestToGenai(t *testing.T) {
	s := ToGenai(prompt.AnalysisSchema())
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, genai.TypeInteger, s.Properties["confidenceScore"].Type)
	assert.Equal(t, genai.TypeArray, s.Properties["steps"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["steps"].Items.Type)
	assert.Equal(t, []string{"Low", "High"}, s.Properties["dangerLevel"].Enum)
	assert.Equal(t, genai.TypeObject, s.Properties["toolSubstitutions"].Items.Type)
	assert.NotContains(t, s.Required, "professionalReferral")
	assert.Equal(t, "objectName", s.PropertyOrdering[0])
}

func TestContents(t *testing.T) {
	req := ai.Request{Parts: []ai.Part{
		{MIMEType: "image/png", Data: "Zm9v"},
		{Text: "fix it"},
	}}
	contents, err := Contents(req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	parts := contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, []byte("foo"), parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, "fix it", parts[1].Text)

	_, err = Contents(ai.Request{Parts: []ai.Part{{MIMEType: "image/png", Data: "%%%"}}})
	assert.Error(t, err)
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient(t.Context(), "", "")
	assert.ErrorIs(t, err, ai.ErrNotConfigured)
}

func TestIsQuota(t *testing.T) {
	assert.True(t, isQuota(genai.APIError{Code: 429}))
	assert.True(t, isQuota(errors.New("Quota exceeded for model")))
	assert.False(t, isQuota(errors.New("boom")))
}
