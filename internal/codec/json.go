package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"prokat/internal/domain"
	"prokat/internal/models"
)

type itemRecord struct {
	ItemType     string      `json:"item_type"`
	Name         string      `json:"name"`
	Price        recordPrice `json:"price"`
	Details      string      `json:"details"`
	Availability bool        `json:"availability"`
	ReturnDate   *string     `json:"return_date"`
}

// recordPrice accepts both numbers and numeric strings on decode and is
// written the way FormatPrice renders it.
type recordPrice float64

func (p recordPrice) MarshalJSON() ([]byte, error) {
	v := float64(p)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("price %v: %w", v, domain.ErrInvalidInput)
	}
	return []byte(FormatPrice(v)), nil
}

func (p *recordPrice) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return fmt.Errorf("price is null: %w", domain.ErrInvalidInput)
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("price %s: %w", raw, domain.ErrInvalidInput)
	}
	*p = recordPrice(v)
	return nil
}

func newRecord(item models.RentalItem) itemRecord {
	rec := itemRecord{
		ItemType:     item.ItemType,
		Name:         item.Name,
		Price:        recordPrice(item.Price),
		Details:      item.Details,
		Availability: item.Availability,
	}
	if item.ReturnDate != nil {
		date := item.FormatReturnDate()
		rec.ReturnDate = &date
	}
	return rec
}

// EncodeJSON writes items as an indented array of records.
func EncodeJSON(w io.Writer, items []models.RentalItem) error {
	records := make([]itemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, newRecord(item))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	out := bytes.TrimRight(buf.Bytes(), "\n")
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// DecodeJSON rebuilds items from item_type, name, price and details.
func DecodeJSON(r io.Reader) ([]models.RentalItem, error) {
	var records []itemRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode json: %v: %w", err, domain.ErrInvalidInput)
	}

	items := make([]models.RentalItem, 0, len(records))
	for _, rec := range records {
		items = append(items, models.NewRentalItem(rec.ItemType, rec.Name, float64(rec.Price), rec.Details))
	}
	return items, nil
}
