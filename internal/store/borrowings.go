package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

// BorrowingQuery filters a borrowing listing. Zero values mean no filter.
type BorrowingQuery struct {
	// UserID restricts the listing to one borrower.
	UserID int64
	// Active selects open (true) or returned (false) borrowings.
	Active *bool
}

const borrowingSelect = `SELECT br.id, br.borrow_date, br.expected_return_date, br.actual_return_date,
        br.book_id, br.user_id,
        b.title, b.author, b.cover, b.inventory, b.daily_fee, b.image IS NOT NULL, b.created_at, b.updated_at,
        u.email
 FROM borrowings br
 JOIN books b ON b.id = br.book_id
 JOIN users u ON u.id = br.user_id`

// InsertBorrowing records a new open borrowing and returns its ID.
func InsertBorrowing(ctx context.Context, q Querier, bookID, userID int64, borrowDate, expected model.Date) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO borrowings (borrow_date, expected_return_date, book_id, user_id)
		 VALUES (?, ?, ?, ?)`,
		borrowDate, expected, bookID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting borrowing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting borrowing id: %w", err)
	}
	return id, nil
}

// GetBorrowing returns a borrowing with its book and borrower email, or nil
// if it does not exist.
func GetBorrowing(ctx context.Context, q Querier, id int64) (*model.Borrowing, error) {
	row := q.QueryRowContext(ctx, borrowingSelect+` WHERE br.id = ?`, id)
	b, err := scanBorrowing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting borrowing: %w", err)
	}
	return b, nil
}

// MarkReturned stamps the return date on an open borrowing. It reports false
// when the borrowing was already returned (or does not exist); the stored
// date is never overwritten.
func MarkReturned(ctx context.Context, q Querier, id int64, date model.Date) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE borrowings SET actual_return_date = ? WHERE id = ? AND actual_return_date IS NULL`,
		date, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking borrowing returned: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking borrowing returned: %w", err)
	}
	return n == 1, nil
}

// ListBorrowings returns borrowings matching the query, newest first.
func ListBorrowings(ctx context.Context, q Querier, query BorrowingQuery) ([]model.Borrowing, error) {
	stmt := borrowingSelect + ` WHERE 1=1`
	var args []any

	if query.UserID > 0 {
		stmt += ` AND br.user_id = ?`
		args = append(args, query.UserID)
	}
	if query.Active != nil {
		if *query.Active {
			stmt += ` AND br.actual_return_date IS NULL`
		} else {
			stmt += ` AND br.actual_return_date IS NOT NULL`
		}
	}

	stmt += ` ORDER BY br.borrow_date DESC, br.id DESC`

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("listing borrowings: %w", err)
	}
	defer rows.Close()

	var borrowings []model.Borrowing
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning borrowing: %w", err)
		}
		borrowings = append(borrowings, *b)
	}
	return borrowings, rows.Err()
}

func scanBorrowing(row rowScanner) (*model.Borrowing, error) {
	br := &model.Borrowing{Book: &model.Book{}}
	var returned sql.NullString
	var cover, fee string
	err := row.Scan(&br.ID, &br.BorrowDate, &br.ExpectedReturnDate, &returned,
		&br.BookID, &br.UserID,
		&br.Book.Title, &br.Book.Author, &cover, &br.Book.Inventory, &fee, &br.Book.HasImage,
		&br.Book.CreatedAt, &br.Book.UpdatedAt,
		&br.UserEmail)
	if err != nil {
		return nil, err
	}

	if returned.Valid {
		d, err := model.ParseDate(returned.String)
		if err != nil {
			return nil, err
		}
		br.ActualReturnDate = &d
	}

	br.Book.ID = br.BookID
	br.Book.Cover = model.Cover(cover)
	br.Book.DailyFee, err = decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("parsing daily fee %q: %w", fee, err)
	}
	return br, nil
}
