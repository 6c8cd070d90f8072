package prompt

import "encoding/json"

// Type is a JSON Schema primitive name.
type Type string

const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeArray   Type = "array"
)

// Schema is a provider-neutral subset of JSON Schema. Providers convert it to
// their own representation.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	// Order keeps property order stable for providers that honour it.
	Order []string `json:"-"`
}

// MarshalJSON adds additionalProperties=false on objects so strict modes accept it.
func (s *Schema) MarshalJSON() ([]byte, error) {
	type alias Schema
	if s.Type != TypeObject {
		return json.Marshal((*alias)(s))
	}
	return json.Marshal(struct {
		*alias
		AdditionalProperties bool `json:"additionalProperties"`
	}{alias: (*alias)(s)})
}

// IsRequired reports whether name is listed as required.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// AnalysisSchema describes the RepairAnalysis object the model must return.
func AnalysisSchema() *Schema {
	str := func(desc string) *Schema { return &Schema{Type: TypeString, Description: desc} }
	strList := func(desc string) *Schema {
		return &Schema{Type: TypeArray, Description: desc, Items: &Schema{Type: TypeString}}
	}

	props := map[string]*Schema{
		"objectName": str("Name of the object being repaired"),
		"dangerLevel": {
			Type:        TypeString,
			Description: "High if any listed hazard is visible, otherwise Low",
			Enum:        []string{"Low", "High"},
		},
		"confidenceScore":      {Type: TypeInteger, Description: "0-100 confidence in the diagnosis"},
		"reasoning":            str("Visual evidence and root cause"),
		"safetyWarning":        str("Safety warning for the user"),
		"professionalReferral": str("Professional to contact when danger is High"),
		"steps":                strList("Ordered repair steps, empty when danger is High"),
		"toolsRequired":        strList("Tools needed for the repair"),
		"toolSubstitutions": {
			Type:        TypeArray,
			Description: "Household alternatives for specialist tools",
			Items: &Schema{
				Type: TypeObject,
				Properties: map[string]*Schema{
					"original":   str("Specialist tool"),
					"substitute": str("Household alternative"),
				},
				Required: []string{"original", "substitute"},
				Order:    []string{"original", "substitute"},
			},
		},
		"estimatedTime": str("Estimated time to complete"),
	}
	order := []string{
		"objectName", "dangerLevel", "confidenceScore", "reasoning", "safetyWarning",
		"professionalReferral", "steps", "toolsRequired", "toolSubstitutions", "estimatedTime",
	}
	return &Schema{
		Type:       TypeObject,
		Properties: props,
		Required: []string{
			"objectName", "dangerLevel", "confidenceScore", "reasoning",
			"safetyWarning", "steps", "toolsRequired", "estimatedTime",
		},
		Order: order,
	}
}
