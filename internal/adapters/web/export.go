package web

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

const exportSheet = "Extraction"

// exportXLSX renders an extract as a two-column workbook.
func exportXLSX(extract *domain.DocumentExtract) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(exportSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(exportSheet)
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	write := func(col, rowNum int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, rowNum)
		if err != nil {
			return err
		}
		return f.SetCellValue(exportSheet, cell, v)
	}

	if err := write(1, 1, "Field Name"); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := write(2, 1, "Extracted Value"); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range resultRows(extract) {
		if err := write(1, i+2, r.FieldName); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
		if err := write(2, i+2, r.Value); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(exportSheet, "A", "A", 28)
	_ = f.SetColWidth(exportSheet, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}
