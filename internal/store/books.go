package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

// BookInput holds the editable fields of a book.
type BookInput struct {
	Title    string
	Author   string
	Cover    model.Cover
	DailyFee decimal.Decimal
}

const bookColumns = `id, title, author, cover, inventory, daily_fee, image IS NOT NULL, created_at, updated_at`

// CreateBook adds a book to the catalog with the given number of copies.
func CreateBook(ctx context.Context, q Querier, in BookInput, inventory int) (*model.Book, error) {
	if inventory < 0 {
		return nil, fmt.Errorf("inventory must not be negative")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO books (title, author, cover, inventory, daily_fee) VALUES (?, ?, ?, ?, ?)`,
		in.Title, in.Author, string(in.Cover), inventory, in.DailyFee.StringFixed(2),
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return GetBook(ctx, q, id)
}

// GetBook returns a book by ID, or nil if it does not exist.
func GetBook(ctx context.Context, q Querier, id int64) (*model.Book, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// ListBooks returns the whole catalog ordered by title.
func ListBooks(ctx context.Context, q Querier) ([]model.Book, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// UpdateBook updates a book's descriptive fields. Inventory is owned by the
// lending protocol and is not touched here. Returns false if no such book.
func UpdateBook(ctx context.Context, q Querier, id int64, in BookInput) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, cover = ?, daily_fee = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Title, in.Author, string(in.Cover), in.DailyFee.StringFixed(2), id,
	)
	if err != nil {
		return false, fmt.Errorf("updating book: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating book: %w", err)
	}
	return n > 0, nil
}

// DeleteBook removes a book. Its borrowings are removed with it.
func DeleteBook(ctx context.Context, q Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting book: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting book: %w", err)
	}
	return n > 0, nil
}

// BookAvailability returns the number of copies currently available.
func BookAvailability(ctx context.Context, q Querier, id int64) (int, error) {
	var inventory int
	err := q.QueryRowContext(ctx, `SELECT inventory FROM books WHERE id = ?`, id).Scan(&inventory)
	if err != nil {
		return 0, fmt.Errorf("getting availability: %w", err)
	}
	return inventory, nil
}

// DecrementInventory takes one copy off the shelf. It reports false, without
// changing anything, when the book has no copies left.
func DecrementInventory(ctx context.Context, q Querier, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET inventory = inventory - 1 WHERE id = ? AND inventory > 0`, id,
	)
	if err != nil {
		return false, fmt.Errorf("decrementing inventory: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrementing inventory: %w", err)
	}
	return n == 1, nil
}

// IncrementInventory puts one copy back on the shelf.
func IncrementInventory(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET inventory = inventory + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("incrementing inventory: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("incrementing inventory: book %d not found", id)
	}
	return nil
}

// SetBookImage sets a book's cover image.
func SetBookImage(ctx context.Context, q Querier, id int64, image []byte, mime string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE books SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return false, fmt.Errorf("setting book image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting book image: %w", err)
	}
	return n > 0, nil
}

// GetBookImage returns a book's cover image and MIME type. Data is nil when
// the book has no image.
func GetBookImage(ctx context.Context, q Querier, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT image, image_mime FROM books WHERE id = ?`, id,
	).Scan(&image, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book image: %w", err)
	}
	return image, mime.String, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*model.Book, error) {
	b := &model.Book{}
	var cover, fee string
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &cover, &b.Inventory, &fee,
		&b.HasImage, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Cover = model.Cover(cover)

	d, err := decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("parsing daily fee %q: %w", fee, err)
	}
	b.DailyFee = d
	return b, nil
}
