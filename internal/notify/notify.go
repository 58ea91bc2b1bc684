// Package notify announces new borrowings on an external channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// Notifier delivers a borrowing announcement.
type Notifier interface {
	Notify(ctx context.Context, b model.Borrowing) error
}

// Message renders the announcement text for a new borrowing.
func Message(b model.Borrowing) string {
	title := ""
	if b.Book != nil {
		title = b.Book.Title
	}

	var sb strings.Builder
	sb.WriteString("New borrowing:\n")
	fmt.Fprintf(&sb, "id: %d\n", b.ID)
	fmt.Fprintf(&sb, "borrow_date: %s\n", b.BorrowDate)
	fmt.Fprintf(&sb, "expected_return_date: %s\n", b.ExpectedReturnDate)
	fmt.Fprintf(&sb, "book: %s\n", title)
	fmt.Fprintf(&sb, "user: %s\n", b.UserEmail)
	return sb.String()
}

// Nop logs the announcement instead of sending it. Used when no channel is
// configured.
type Nop struct{}

func (Nop) Notify(_ context.Context, b model.Borrowing) error {
	slog.Debug("notification skipped, no channel configured", "borrowing", b.ID)
	return nil
}
