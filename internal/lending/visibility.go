package lending

import (
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Caller identifies who is performing a lending operation.
type Caller struct {
	UserID int64
	Email  string
	Staff  bool
}

// Filter narrows a borrowing listing.
type Filter struct {
	// Active selects open (true) or returned (false) borrowings; nil means both.
	Active *bool
	// UserID selects one borrower. Only honored for staff.
	UserID int64
}

// CanSee reports whether caller may see borrowing b.
func CanSee(caller Caller, b *model.Borrowing) bool {
	return caller.Staff || b.UserID == caller.UserID
}

// Scope turns a filter into a store query restricted to what caller may see.
// Non-staff callers only ever get their own borrowings.
func Scope(caller Caller, f Filter) store.BorrowingQuery {
	q := store.BorrowingQuery{Active: f.Active}
	if caller.Staff {
		q.UserID = f.UserID
	} else {
		q.UserID = caller.UserID
	}
	return q
}
