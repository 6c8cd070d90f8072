package repair

import (
	"errors"
	"fmt"
	"strings"
)

// MediaKind discriminates captured assets.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// KindForMIME: video/* => video, sisanya image
func KindForMIME(mimeType string) MediaKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/") {
		return MediaVideo
	}
	return MediaImage
}

// MediaItem is one captured or uploaded asset, base64 encoded for transport.
type MediaItem struct {
	ID         string    `json:"id"`
	Data       string    `json:"data"`
	MIMEType   string    `json:"mimeType"`
	PreviewURL string    `json:"previewUrl"`
	Kind       MediaKind `json:"type"`
	// ObjectKey is set only while the payload lives in an object store.
	ObjectKey string `json:"objectKey,omitempty"`
}

// DataURL renders the item as a locally resolvable preview locator.
func (m MediaItem) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", m.MIMEType, m.Data)
}

// Validate checks the MIME/kind invariant and that a payload is present.
func (m MediaItem) Validate() error {
	if strings.TrimSpace(m.MIMEType) == "" {
		return errors.New("media: mime type is required")
	}
	if m.Data == "" && m.ObjectKey == "" {
		return fmt.Errorf("media %s: empty payload", m.ID)
	}
	if m.Kind != KindForMIME(m.MIMEType) {
		return fmt.Errorf("media %s: kind %q does not match mime type %q", m.ID, m.Kind, m.MIMEType)
	}
	return nil
}

// SkillLevel shapes prompt phrasing only.
type SkillLevel string

const (
	SkillNovice       SkillLevel = "Novice"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillExpert       SkillLevel = "Expert"
)

// DefaultSkillLevel is used when nothing was persisted.
const DefaultSkillLevel = SkillNovice

// SkillLevels lists the selectable tiers in display order.
func SkillLevels() []SkillLevel {
	return []SkillLevel{SkillNovice, SkillIntermediate, SkillExpert}
}

// ParseSkillLevel is case-insensitive and falls back to Novice.
func ParseSkillLevel(s string) SkillLevel {
	for _, lvl := range SkillLevels() {
		if strings.EqualFold(strings.TrimSpace(s), string(lvl)) {
			return lvl
		}
	}
	return DefaultSkillLevel
}

// DangerLevel gates whether actionable steps are shown at all.
type DangerLevel string

const (
	DangerLow  DangerLevel = "Low"
	DangerHigh DangerLevel = "High"
)

// LowConfidenceThreshold marks advisory low-confidence results.
const LowConfidenceThreshold = 60

// ToolSubstitution suggests a household alternative for a specialist tool.
type ToolSubstitution struct {
	Original   string `json:"original"`
	Substitute string `json:"substitute"`
}

func (t ToolSubstitution) String() string {
	return fmt.Sprintf("Use %s instead of %s", t.Substitute, t.Original)
}

// Analysis is the model's structured repair plan.
type Analysis struct {
	ObjectName           string             `json:"objectName"`
	DangerLevel          DangerLevel        `json:"dangerLevel"`
	ConfidenceScore      int                `json:"confidenceScore"`
	Reasoning            string             `json:"reasoning"`
	SafetyWarning        string             `json:"safetyWarning"`
	ProfessionalReferral string             `json:"professionalReferral,omitempty"`
	Steps                []string           `json:"steps"`
	ToolsRequired        []string           `json:"toolsRequired"`
	ToolSubstitutions    []ToolSubstitution `json:"toolSubstitutions,omitempty"`
	EstimatedTime        string             `json:"estimatedTime"`
}

func (a *Analysis) IsHighDanger() bool { return a.DangerLevel == DangerHigh }

func (a *Analysis) LowConfidence() bool { return a.ConfidenceScore < LowConfidenceThreshold }

// ActionableSteps hides every step of a High danger result, whatever the model sent.
func (a *Analysis) ActionableSteps() []string {
	if a.IsHighDanger() {
		return nil
	}
	return a.Steps
}
