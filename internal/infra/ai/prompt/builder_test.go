package prompt

import (
	"encoding/json"
	"testing"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []repair.MediaItem {
	out := make([]repair.MediaItem, n)
	for i := range out {
		out[i] = repair.MediaItem{ID: string(rune('a' + i)), Data: "Zm9v", MIMEType: "image/jpeg", Kind: repair.MediaImage}
	}
	return out
}

func TestBuild_EmptyMedia(t *testing.T) {
	_, err := Build(nil, "", repair.SkillNovice)
	require.ErrorIs(t, err, ai.ErrEmptyMedia)
}

func TestBuild_PartsOrder(t *testing.T) {
	media := items(3)
	media[1].MIMEType = "video/webm"
	req, err := Build(media, "Why is it leaking?", repair.SkillExpert)
	require.NoError(t, err)

	require.Len(t, req.Parts, 4)
	assert.Equal(t, "image/jpeg", req.Parts[0].MIMEType)
	assert.Equal(t, "video/webm", req.Parts[1].MIMEType)
	assert.True(t, req.Parts[3].IsText())
	assert.Contains(t, req.Parts[3].Text, "EXPERT")
	assert.Contains(t, req.Parts[3].Text, `"Why is it leaking?"`)
	assert.Len(t, req.MediaParts(), 3)
	assert.Equal(t, GetSystemPrompt(), req.System)
}

func TestBuild_DefaultQuery(t *testing.T) {
	req, err := Build(items(1), "   ", repair.SkillNovice)
	require.NoError(t, err)
	assert.Contains(t, req.Parts[1].Text, DefaultQuery)
	assert.Contains(t, req.Parts[1].Text, "NOVICE")
}

func TestGetUserPrompt_SafetyContract(t *testing.T) {
	text := GetUserPrompt("x", repair.SkillIntermediate)
	for _, h := range Hazards {
		assert.Contains(t, text, h)
	}
	assert.Contains(t, text, "STOP: DO NOT ATTEMPT")
	assert.Contains(t, text, "EMPTY 'steps'")
	assert.Contains(t, text, "strict JSON")
}

func TestAnalysisSchema(t *testing.T) {
	s := AnalysisSchema()
	assert.False(t, s.IsRequired("professionalReferral"))
	assert.False(t, s.IsRequired("toolSubstitutions"))
	assert.True(t, s.IsRequired("dangerLevel"))
	assert.Equal(t, []string{"Low", "High"}, s.Properties["dangerLevel"].Enum)
	assert.Len(t, s.Order, len(s.Properties))

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, false, decoded["additionalProperties"])
	props := decoded["properties"].(map[string]any)
	steps := props["steps"].(map[string]any)
	assert.Equal(t, "array", steps["type"])
	assert.NotContains(t, steps, "additionalProperties")
}
