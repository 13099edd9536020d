package replyparser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

// DocumentExtractSchema is the JSON Schema a model reply must satisfy after sanitizing.
const DocumentExtractSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["file_name", "extracted_data", "summary"],
  "properties": {
    "file_name": {"type": "string"},
    "summary": {"type": "string"},
    "extracted_data": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["field_name"],
        "properties": {
          "field_name": {"type": "string", "minLength": 1},
          "field_value": {"type": ["string", "number", "boolean", "null"]}
        }
      }
    }
  }
}`

var errNoJSONObject = errors.New("model reply contains no JSON object")

type Parser struct {
	schema *jsonschema.Schema
}

func New() (*Parser, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("document_extract.json", strings.NewReader(DocumentExtractSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("document_extract.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Parser{schema: schema}, nil
}

// Parse pulls the JSON object out of raw, sanitizes it, validates it and decodes it.
// A missing file_name falls back to fileName.
func (p *Parser) Parse(raw string, fileName string) (domain.DocumentExtract, error) {
	obj := extractJSONObject(raw)
	if obj == "" {
		return domain.DocumentExtract{}, errNoJSONObject
	}

	var doc map[string]any
	if err := decodeNumbers(obj, &doc); err != nil {
		return domain.DocumentExtract{}, fmt.Errorf("decode reply json: %w", err)
	}
	if _, ok := doc["file_name"]; !ok {
		doc["file_name"] = fileName
	}
	sanitize(doc)

	if err := p.schema.Validate(doc); err != nil {
		return domain.DocumentExtract{}, fmt.Errorf("reply does not match schema: %w", err)
	}

	// numbers stay json.Number on both decodes; float64 loses digits past 2^53
	normalized, err := json.Marshal(doc)
	if err != nil {
		return domain.DocumentExtract{}, fmt.Errorf("encode sanitized reply: %w", err)
	}
	var out domain.DocumentExtract
	if err := decodeNumbers(string(normalized), &out); err != nil {
		return domain.DocumentExtract{}, fmt.Errorf("decode sanitized reply: %w", err)
	}
	if out.ExtractedData == nil {
		out.ExtractedData = []domain.ExtractedField{}
	}
	return out, nil
}

func decodeNumbers(raw string, v any) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// sanitize drops entries without a usable field name and flattens non-scalar values to JSON text.
func sanitize(doc map[string]any) {
	items, ok := doc["extracted_data"].([]any)
	if !ok {
		return
	}
	kept := make([]any, 0, len(items))
	for _, item := range items {
		field, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := field["field_name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		field["field_name"] = name

		switch v := field["field_value"].(type) {
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			field["field_value"] = string(encoded)
		}
		kept = append(kept, field)
	}
	doc["extracted_data"] = kept
}

// extractJSONObject trims code fences and prose around the outermost object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}
