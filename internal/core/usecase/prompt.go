package usecase

import (
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

const extractionPromptTemplate = `
You are a specialized Bill of Lading (BOL) extraction AI. Your task is to extract ONLY the fields listed below.

Document: {file_name}

{additional_context}

EXTRACT ONLY THESE FIELDS:
- {target_fields}

INSTRUCTIONS:
- Use EXACT field names from the list above.
- If a field is not present, omit it.
- If a signature is visible, set "Signature" to "Signed".
- Return a JSON with fields 'file_name', 'extracted_data' (list of field_name/value), and 'summary'.
{special_instructions}
{field_descriptions}
`

func buildExtractionPrompt(fileName, additionalContext string, hints domain.ExtractionHints) string {
	targets := domain.BOLTargetFields
	if len(hints.TargetFields) > 0 {
		targets = hints.TargetFields
	}

	special := ""
	if instr := strings.TrimSpace(hints.Instructions); instr != "" {
		special = "\nSPECIAL INSTRUCTIONS:\n" + instr + "\n"
	}

	r := strings.NewReplacer(
		"{file_name}", fileName,
		"{additional_context}", additionalContext,
		"{target_fields}", strings.Join(targets, ", "),
		"{special_instructions}", special,
		"{field_descriptions}", domain.BOLFieldDescriptions,
	)
	return r.Replace(extractionPromptTemplate)
}
