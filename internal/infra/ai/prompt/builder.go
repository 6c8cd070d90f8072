package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/resolve-ai/internal/domain/ai"
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// DefaultQuery is used when the user leaves the query blank.
const DefaultQuery = "How do I fix this?"

// Hazards that force a High danger classification.
var Hazards = []string{
	"open flame or smoke",
	"exposed mains (line-voltage) wiring",
	"damaged gas pipes or fittings",
	"swollen or bloated lithium-ion battery cells",
	"structural collapse risk",
}

// GetSystemPrompt provides the system instruction sent with every analysis.
func GetSystemPrompt() string {
	return "You are an intelligent repair assistant. Your priority is user safety, then repair success."
}

// GetUserPrompt builds the instruction text around the skill level and query.
func GetUserPrompt(query string, skill repair.SkillLevel) string {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	var b strings.Builder
	b.WriteString("You are Resolve AI, an expert safety-first technician.\n\n")
	b.WriteString("CONTEXT:\n")
	fmt.Fprintf(&b, "- User Skill Level: %s\n", strings.ToUpper(string(skill)))
	fmt.Fprintf(&b, "- User Query: %q\n\n", query)

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. VISUAL REASONING: Analyze the image/video frames. Identify specific damage patterns. ")
	b.WriteString("Ground every finding in visible evidence and connect it to the root cause.\n")

	b.WriteString("2. SAFETY FIRST:\n")
	fmt.Fprintf(&b, "   - Look for: %s.\n", strings.Join(Hazards, ", "))
	b.WriteString("   - If ANY of these are visible, set 'dangerLevel' to 'High'. Otherwise set it to 'Low'.\n")
	b.WriteString("   - If 'High': start 'safetyWarning' with 'STOP: DO NOT ATTEMPT', name the professional to call in ")
	b.WriteString("'professionalReferral' (e.g. 'Certified Electrician', 'Gas Utility', 'Fire Department'), and return an EMPTY 'steps' array.\n")

	b.WriteString("3. PERSONALIZATION:\n")
	switch skill {
	case repair.SkillExpert:
		b.WriteString("   - Expert: be concise, use technical terminology, focus on specifications and tolerances. ")
		b.WriteString("Only suggest tool substitutions when no specialist tool is commonly available.\n")
	case repair.SkillIntermediate:
		b.WriteString("   - Intermediate: use plain but precise language, explain non-obvious steps, ")
		b.WriteString("suggest tool substitutions where they are safe.\n")
	default:
		b.WriteString("   - Novice: use simple language and explain *why* each step is needed. ")
		b.WriteString("Suggest household tool substitutions where safe (e.g. a credit card instead of a spudger).\n")
	}

	b.WriteString("4. CONFIDENCE:\n")
	b.WriteString("   - If the media is blurry or the model number/damage is not clearly visible, lower 'confidenceScore' ")
	b.WriteString("(below 60 when ambiguous) and explain why in 'reasoning'.\n\n")

	b.WriteString("Return strict JSON.")
	return b.String()
}

// Build assembles the request: every media item in order, then one instruction part.
func Build(media []repair.MediaItem, query string, skill repair.SkillLevel) (ai.Request, error) {
	if len(media) == 0 {
		return ai.Request{}, ai.ErrEmptyMedia
	}
	parts := make([]ai.Part, 0, len(media)+1)
	for _, m := range media {
		if m.Data == "" {
			return ai.Request{}, fmt.Errorf("media %s: empty payload", m.ID)
		}
		parts = append(parts, ai.Part{MIMEType: m.MIMEType, Data: m.Data})
	}
	parts = append(parts, ai.Part{Text: GetUserPrompt(query, skill)})

	return ai.Request{System: GetSystemPrompt(), Parts: parts}, nil
}
