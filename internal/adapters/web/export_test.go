package web

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

func TestExportXLSXWritesHeaderAndRows(t *testing.T) {
	raw, err := exportXLSX(&domain.DocumentExtract{
		FileName: "bol.pdf",
		ExtractedData: []domain.ExtractedField{
			{FieldName: "BOL Number", FieldValue: "BOL-77"},
			{FieldName: "Weight", FieldValue: nil},
		},
	})
	if err != nil {
		t.Fatalf("exportXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "Field Name" || rows[0][1] != "Extracted Value" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "BOL-77" || rows[2][1] != "N/A" {
		t.Fatalf("unexpected values: %v", rows[1:])
	}
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != exportSheet {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
}
