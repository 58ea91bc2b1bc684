package lending

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a borrowing does not exist or the caller
	// may not see it. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("borrowing not found")

	// ErrAlreadyReturned is returned when returning a borrowing twice.
	ErrAlreadyReturned = errors.New("borrowing was already returned, cannot return borrowing twice")
)

// ValidationError reports bad input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// OutOfStockError is returned when a book has no copies left to borrow.
type OutOfStockError struct {
	BookID int64
	Title  string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s is not available for borrowing.", strings.ToLower(e.Title))
}
