// Package lending implements borrowing and returning books while keeping
// book inventory consistent with the borrowing ledger.
package lending

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Dispatcher hands a freshly created borrowing to the notification channel.
// Dispatch must not block on delivery and has no way to fail the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, b model.Borrowing)
}

// Service runs the borrowing lifecycle against the database.
type Service struct {
	DB         *sql.DB
	Dispatcher Dispatcher

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewService returns a Service using the wall clock.
func NewService(db *sql.DB, d Dispatcher) *Service {
	return &Service{DB: db, Dispatcher: d, Now: time.Now}
}

// CreateRequest describes a new borrowing.
type CreateRequest struct {
	BookID             int64
	ExpectedReturnDate model.Date
}

func (s *Service) today() model.Date {
	if s.Now == nil {
		return model.DateOf(time.Now())
	}
	return model.DateOf(s.Now())
}

// CreateBorrowing lends one copy of a book to caller. The availability check,
// ledger insert and inventory decrement commit together or not at all. A
// notification is dispatched only after a successful commit.
func (s *Service) CreateBorrowing(ctx context.Context, caller Caller, req CreateRequest) (*model.Borrowing, error) {
	today := s.today()
	if !req.ExpectedReturnDate.After(today) {
		return nil, &ValidationError{
			Field:   "expected_return_date",
			Message: "Expected return date must be greater than current date",
		}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	book, err := store.GetBook(ctx, tx, req.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, &ValidationError{Field: "book", Message: fmt.Sprintf("book %d does not exist", req.BookID)}
	}
	available, err := store.BookAvailability(ctx, tx, book.ID)
	if err != nil {
		return nil, err
	}
	if available < 1 {
		return nil, &OutOfStockError{BookID: book.ID, Title: book.Title}
	}

	id, err := store.InsertBorrowing(ctx, tx, book.ID, caller.UserID, today, req.ExpectedReturnDate)
	if err != nil {
		return nil, err
	}

	ok, err := store.DecrementInventory(ctx, tx, book.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &OutOfStockError{BookID: book.ID, Title: book.Title}
	}

	borrowing, err := store.GetBorrowing(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing borrowing: %w", err)
	}

	slog.Info("borrowing created", "id", borrowing.ID, "user", caller.Email,
		"book", book.Title, "expected_return_date", borrowing.ExpectedReturnDate)

	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(ctx, *borrowing)
	}

	return borrowing, nil
}

// ReturnBorrowing marks a borrowing returned today and puts the copy back on
// the shelf. Borrowings the caller may not see are reported as ErrNotFound.
func (s *Service) ReturnBorrowing(ctx context.Context, caller Caller, id int64) (*model.Borrowing, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	borrowing, err := store.GetBorrowing(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if borrowing == nil || !CanSee(caller, borrowing) {
		return nil, ErrNotFound
	}
	if borrowing.IsReturned() {
		return nil, ErrAlreadyReturned
	}

	today := s.today()
	if today.Before(borrowing.BorrowDate) {
		// Clock moved backwards; never store a return before the borrow.
		today = borrowing.BorrowDate
	}

	ok, err := store.MarkReturned(ctx, tx, id, today)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyReturned
	}

	if err := store.IncrementInventory(ctx, tx, borrowing.BookID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}

	borrowing.ActualReturnDate = &today
	borrowing.Book.Inventory++

	slog.Info("borrowing returned", "id", borrowing.ID, "user", caller.Email,
		"book", borrowing.Book.Title)
	return borrowing, nil
}

// GetBorrowing returns a single borrowing visible to caller.
func (s *Service) GetBorrowing(ctx context.Context, caller Caller, id int64) (*model.Borrowing, error) {
	borrowing, err := store.GetBorrowing(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if borrowing == nil || !CanSee(caller, borrowing) {
		return nil, ErrNotFound
	}
	return borrowing, nil
}

// ListBorrowings returns the borrowings visible to caller, newest first.
func (s *Service) ListBorrowings(ctx context.Context, caller Caller, f Filter) ([]model.Borrowing, error) {
	return store.ListBorrowings(ctx, s.DB, Scope(caller, f))
}
