package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"prokat/internal/domain"
	"prokat/internal/models"
)

// EncodeCSV writes the header and one row per item. Rows of items without
// a return date stop after the availability column.
func EncodeCSV(w io.Writer, items []models.RentalItem) error {
	writer := csv.NewWriter(w)
	writer.UseCRLF = true

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		if err := writer.Write(tableRow(item)); err != nil {
			return fmt.Errorf("write csv row %q: %w", item.Name, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// tableRow is the flat-table row of an item, shared with the spreadsheet
// writers.
func tableRow(item models.RentalItem) []string {
	row := []string{
		item.ItemType,
		item.Name,
		FormatPrice(item.Price),
		item.Details,
		FormatAvailability(item.Availability),
	}
	if item.ReturnDate != nil {
		row = append(row, item.FormatReturnDate())
	}
	return row
}

// TableRows returns the header followed by the flat-table rows of items.
func TableRows(items []models.RentalItem) [][]string {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, item := range items {
		rows = append(rows, tableRow(item))
	}
	return rows
}

// DecodeCSV reads rows by header name, tolerating rows with fewer or more
// fields than the header.
func DecodeCSV(r io.Reader) ([]models.RentalItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.RentalItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %v: %w", err, domain.ErrInvalidInput)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if _, seen := columns[name]; !seen {
			columns[name] = i
		}
	}
	for _, required := range []string{FieldItemType, FieldName, FieldPrice, FieldDetails} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv header has no %q column: %w", required, domain.ErrInvalidInput)
		}
	}

	items := make([]models.RentalItem, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %v: %w", line, err, domain.ErrInvalidInput)
		}

		field := func(name string) string {
			idx := columns[name]
			if idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		price, err := ParsePrice(field(FieldPrice))
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		items = append(items, models.NewRentalItem(field(FieldItemType), field(FieldName), price, field(FieldDetails)))
	}
	return items, nil
}
