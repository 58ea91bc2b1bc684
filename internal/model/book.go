package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Cover is the binding type of a book.
type Cover string

// Covers.
const (
	CoverHard Cover = "HARD"
	CoverSoft Cover = "SOFT"
)

// Valid reports whether c is a known cover.
func (c Cover) Valid() bool {
	return c == CoverHard || c == CoverSoft
}

// Display returns the human-readable cover name.
func (c Cover) Display() string {
	switch c {
	case CoverHard:
		return "Hard"
	case CoverSoft:
		return "Soft"
	}
	return string(c)
}

// MaxTextLength bounds book title and author.
const MaxTextLength = 100

// MaxDailyFee is the largest fee a decimal(5,2) column holds.
var MaxDailyFee = decimal.RequireFromString("999.99")

// Book is a catalog entry. Inventory counts copies currently on the shelf.
type Book struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Cover     Cover           `json:"cover"`
	Inventory int             `json:"inventory"`
	DailyFee  decimal.Decimal `json:"daily_fee"`
	HasImage  bool            `json:"has_image"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DailyFeeDisplay formats the fee for display, e.g. "1.50$".
func (b *Book) DailyFeeDisplay() string {
	return b.DailyFee.StringFixed(2) + "$"
}

// MarshalJSON adds the display forms of cover and fee.
func (b Book) MarshalJSON() ([]byte, error) {
	type plain Book
	return json.Marshal(struct {
		plain
		CoverDisplay    string `json:"cover_display"`
		DailyFeeDisplay string `json:"daily_fee_display"`
	}{
		plain:           plain(b),
		CoverDisplay:    b.Cover.Display(),
		DailyFeeDisplay: b.DailyFeeDisplay(),
	})
}
