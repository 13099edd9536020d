package web

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

const notAvailable = "N/A"

const emptyConfigWarning = "Please select at least one primary field or provide special instructions."

// row is one line of a results table.
type row struct {
	FieldName string
	Value     string
}

// fieldOptions lists the selectable field names of an extract: unique, sorted, without N/A.
func fieldOptions(extract *domain.DocumentExtract) []string {
	if extract == nil {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, len(extract.ExtractedData))
	for _, name := range extract.FieldNames() {
		if name == notAvailable {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// visibleSelection is what the multiselect shows: previous choices still on offer,
// or every option when none survive.
func visibleSelection(selected, options []string) []string {
	offered := make(map[string]struct{}, len(options))
	for _, o := range options {
		offered[o] = struct{}{}
	}
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if _, ok := offered[s]; ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(options) > 0 {
		return append([]string(nil), options...)
	}
	return out
}

// selectionAfterRerun keeps the submitted choices that the new extract still returns.
// When none survive, every new field name is selected.
func selectionAfterRerun(submitted []string, extract *domain.DocumentExtract) []string {
	var names []string
	if extract != nil {
		for _, name := range extract.FieldNames() {
			if name != notAvailable {
				names = append(names, name)
			}
		}
	}

	present := make(map[string]struct{}, len(names))
	for _, n := range names {
		present[n] = struct{}{}
	}
	preserved := make([]string, 0, len(submitted))
	for _, s := range submitted {
		if _, ok := present[s]; ok {
			preserved = append(preserved, s)
		}
	}
	if len(preserved) == 0 && len(names) > 0 {
		return names
	}
	return preserved
}

// emptyConfig reports a final configuration with nothing to steer extraction.
func emptyConfig(fields []string, instructions string) bool {
	return len(fields) == 0 && strings.TrimSpace(instructions) == ""
}

func resultRows(extract *domain.DocumentExtract) []row {
	if extract == nil {
		return nil
	}
	rows := make([]row, 0, len(extract.ExtractedData))
	for _, f := range extract.ExtractedData {
		name := f.FieldName
		if strings.TrimSpace(name) == "" {
			name = notAvailable
		}
		rows = append(rows, row{FieldName: name, Value: displayValue(f.FieldValue)})
	}
	return rows
}

func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return notAvailable
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}
