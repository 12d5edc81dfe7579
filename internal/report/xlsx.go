package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"buyerportal/pkg/models"
)

// SheetName is the worksheet holding the invoices.
const SheetName = "Fakturor"

// WriteXLSX writes a workbook with one worksheet of invoices.
func WriteXLSX(w io.Writer, records []*models.InvoiceRecord) error {
	f, err := BuildXLSX(records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// BuildXLSX builds the invoice workbook.
func BuildXLSX(records []*models.InvoiceRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, err
		}
	}

	styleHeader, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1E3A5F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, styleHeader); err != nil {
		return nil, err
	}

	for r, row := range Rows(records) {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 16) // invoice number
	_ = f.SetColWidth(SheetName, "B", "B", 24) // supplier
	_ = f.SetColWidth(SheetName, "C", "C", 16) // amount
	_ = f.SetColWidth(SheetName, "D", "D", 32) // status
	_ = f.SetColWidth(SheetName, "E", "F", 18) // payout

	return f, nil
}
