// Package codec reads and writes the catalog in its file formats.
//
// The structured-record (JSON) and flat-table (CSV) formats are lossy on
// purpose: decoding rebuilds items from item_type, name, price and details
// only, so every decoded item is available and has no return date.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"prokat/internal/domain"
	"prokat/internal/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Field names shared by both formats, in column order.
const (
	FieldItemType     = "item_type"
	FieldName         = "name"
	FieldPrice        = "price"
	FieldDetails      = "details"
	FieldAvailability = "availability"
	FieldReturnDate   = "return_date"
)

var Header = []string{FieldItemType, FieldName, FieldPrice, FieldDetails, FieldAvailability, FieldReturnDate}

func Encode(w io.Writer, format Format, items []models.RentalItem) error {
	switch format {
	case FormatJSON:
		return EncodeJSON(w, items)
	case FormatCSV:
		return EncodeCSV(w, items)
	default:
		return fmt.Errorf("unknown format %q: %w", format, domain.ErrInvalidInput)
	}
}

func Decode(r io.Reader, format Format) ([]models.RentalItem, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(r)
	case FormatCSV:
		return DecodeCSV(r)
	default:
		return nil, fmt.Errorf("unknown format %q: %w", format, domain.ErrInvalidInput)
	}
}

// WriteFile encodes items into path, truncating any existing file.
// Encoding happens before the file is opened so a codec error leaves the
// previous file untouched.
func WriteFile(path string, format Format, items []models.RentalItem) error {
	var buf bytes.Buffer
	if err := Encode(&buf, format, items); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := file.Write(buf.Bytes()); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the whole file at path.
func ReadFile(path string, format Format) ([]models.RentalItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	items, err := Decode(file, format)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, nil
}

// FormatPrice renders a price the way the legacy files do: whole numbers
// keep a trailing ".0".
func FormatPrice(price float64) string {
	s := strconv.FormatFloat(price, 'f', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

// ParsePrice parses a price cell or criteria string.
func ParsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", s, domain.ErrInvalidInput)
	}
	return v, nil
}

// FormatAvailability renders availability as the legacy True/False.
func FormatAvailability(available bool) string {
	if available {
		return "True"
	}
	return "False"
}
