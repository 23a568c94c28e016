package models

import (
	"strings"
	"time"
)

const (
	ItemTypeElectronic = "Electronic"
	ItemTypeBook       = "Book"
)

// DateLayout is the on-disk and on-screen format of return dates.
const DateLayout = "2006-01-02"

const (
	AnnotationCondition = "condition"
	AnnotationReview    = "review"
)

// Annotation is a condition or review attached to an item, kept in the
// order it was added.
type Annotation struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Label returns the prefix used when the annotation is folded into Details.
func (a Annotation) Label() string {
	switch a.Kind {
	case AnnotationCondition:
		return "Conditions"
	case AnnotationReview:
		return "Review"
	default:
		return a.Kind
	}
}

type RentalItem struct {
	ItemType     string       `yaml:"item_type" json:"item_type"`
	Name         string       `yaml:"name" json:"name"`
	Price        float64      `yaml:"price" json:"price"`
	Details      string       `yaml:"details" json:"details"`
	Availability bool         `yaml:"-" json:"availability"`
	ReturnDate   *time.Time   `yaml:"-" json:"return_date,omitempty"`
	Annotations  []Annotation `yaml:"-" json:"annotations,omitempty"`
}

// NewRentalItem builds an available item with no return date.
func NewRentalItem(itemType, name string, price float64, details string) RentalItem {
	return RentalItem{
		ItemType:     itemType,
		Name:         name,
		Price:        price,
		Details:      details,
		Availability: true,
	}
}

// HasName reports whether name matches the item name ignoring case.
func (i *RentalItem) HasName(name string) bool {
	return strings.EqualFold(i.Name, name)
}

// HasType reports whether itemType matches the item type ignoring case.
func (i *RentalItem) HasType(itemType string) bool {
	return strings.EqualFold(i.ItemType, itemType)
}

// Annotate records an annotation and appends its legacy text form to Details.
func (i *RentalItem) Annotate(kind, text string) {
	a := Annotation{Kind: kind, Text: text}
	i.Annotations = append(i.Annotations, a)
	i.Details += ", " + a.Label() + ": " + text
}

// SetDetails overwrites Details. Annotations folded into the old text are
// gone with it, so the list is cleared.
func (i *RentalItem) SetDetails(details string) {
	i.Details = details
	i.Annotations = nil
}

// Clone returns a copy that shares no memory with the receiver.
func (i RentalItem) Clone() RentalItem {
	out := i
	if i.ReturnDate != nil {
		d := *i.ReturnDate
		out.ReturnDate = &d
	}
	if i.Annotations != nil {
		out.Annotations = append([]Annotation(nil), i.Annotations...)
	}
	return out
}

// FormatReturnDate returns the return date as YYYY-MM-DD, or "" when unset.
func (i *RentalItem) FormatReturnDate() string {
	if i.ReturnDate == nil {
		return ""
	}
	return i.ReturnDate.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date in the local time zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
}

// CatalogStats is the availability summary of a catalog.
type CatalogStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Rented    int `json:"rented"`
}

// DueNotice is emitted for an item whose return date is close.
type DueNotice struct {
	Name      string    `json:"name"`
	DaysUntil int       `json:"days_until"`
	Date      time.Time `json:"return_date"`
}

// NewElectronic builds an electronic item whose details name the brand.
func NewElectronic(name string, price float64, brand string) RentalItem {
	return NewRentalItem(ItemTypeElectronic, name, price, "Brand: "+brand)
}

// NewBook builds a book whose details name the author.
func NewBook(name string, price float64, author string) RentalItem {
	return NewRentalItem(ItemTypeBook, name, price, "Author: "+author)
}
