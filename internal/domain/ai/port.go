package ai

import "context"

// Part is one piece of a multimodal request: inline media or text.
type Part struct {
	MIMEType string
	Data     string // base64
	Text     string
}

// IsText reports whether the part carries instruction text instead of media.
func (p Part) IsText() bool { return p.MIMEType == "" && p.Data == "" }

// Request is a provider-neutral analysis request: media parts in capture order
// followed by exactly one instruction text part.
type Request struct {
	System string
	Parts  []Part
}

// MediaParts returns the non-text parts.
func (r Request) MediaParts() []Part {
	out := make([]Part, 0, len(r.Parts))
	for _, p := range r.Parts {
		if !p.IsText() {
			out = append(out, p)
		}
	}
	return out
}

// Analyzer sends a built request to a model provider and returns the raw JSON text.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}
