package model

import "encoding/json"

// Borrowing is a ledger entry recording that a user took a copy of a book.
// A nil ActualReturnDate means the copy is still out.
type Borrowing struct {
	ID                 int64 `json:"id"`
	BorrowDate         Date  `json:"borrow_date"`
	ExpectedReturnDate Date  `json:"expected_return_date"`
	ActualReturnDate   *Date `json:"actual_return_date"`
	BookID             int64 `json:"book_id"`
	UserID             int64 `json:"user_id"`

	// Joined fields.
	Book      *Book  `json:"book,omitempty"`
	UserEmail string `json:"user,omitempty"`
}

// IsReturned reports whether the borrowed copy has been given back.
func (b *Borrowing) IsReturned() bool {
	return b.ActualReturnDate != nil
}

// MarshalJSON adds the derived is_returned flag.
func (b Borrowing) MarshalJSON() ([]byte, error) {
	type plain Borrowing
	return json.Marshal(struct {
		plain
		IsReturned bool `json:"is_returned"`
	}{
		plain:      plain(b),
		IsReturned: b.IsReturned(),
	})
}
