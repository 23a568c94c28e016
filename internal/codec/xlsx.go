package codec

import (
	"fmt"
	"io"

	"prokat/internal/models"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Catalog"

// WriteXLSX renders the flat table into a single-sheet workbook.
func WriteXLSX(w io.Writer, items []models.RentalItem) error {
	f, err := buildWorkbook(items)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ExportXLSX saves the workbook to path.
func ExportXLSX(path string, items []models.RentalItem) error {
	f, err := buildWorkbook(items)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

func buildWorkbook(items []models.RentalItem) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(xlsxSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	for rowIdx, row := range TableRows(items) {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if rowIdx > 0 && colIdx == 2 {
				_ = f.SetCellValue(xlsxSheet, cell, items[rowIdx-1].Price)
				continue
			}
			_ = f.SetCellValue(xlsxSheet, cell, value)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(Header), 1)
		_ = f.SetCellStyle(xlsxSheet, "A1", lastCell, style)
	}

	_ = f.SetColWidth(xlsxSheet, "A", "B", 20)
	_ = f.SetColWidth(xlsxSheet, "D", "D", 40)
	_ = f.SetColWidth(xlsxSheet, "F", "F", 14)

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	return f, nil
}
