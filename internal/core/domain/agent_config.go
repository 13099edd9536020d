package domain

import "strings"

// AgentConfig is the operator-chosen extraction focus. One value per process.
type AgentConfig struct {
	FieldsToExtract     []string `json:"fields_to_extract"`
	SpecialInstructions string   `json:"special_instructions"`
}

// NewAgentConfig applies set semantics to the field list: blanks and duplicates are dropped,
// first-seen order is kept. The result never carries a nil slice.
func NewAgentConfig(fields []string, instructions string) AgentConfig {
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return AgentConfig{FieldsToExtract: out, SpecialInstructions: instructions}
}

func (c AgentConfig) Hints() ExtractionHints {
	return ExtractionHints{TargetFields: c.FieldsToExtract, Instructions: c.SpecialInstructions}
}
