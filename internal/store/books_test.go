package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func testBook(title string) BookInput {
	return BookInput{
		Title:    title,
		Author:   "Frank Herbert",
		Cover:    model.CoverHard,
		DailyFee: decimal.RequireFromString("1.50"),
	}
}

func TestCreateAndGetBook(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book, err := CreateBook(ctx, database, testBook("Dune"), 3)
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if book.Title != "Dune" || book.Inventory != 3 {
		t.Errorf("unexpected book %+v", book)
	}
	if !book.DailyFee.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected fee 1.50, got %s", book.DailyFee)
	}
	if book.Cover != model.CoverHard {
		t.Errorf("expected HARD cover, got %s", book.Cover)
	}

	missing, err := GetBook(ctx, database, book.ID+1)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent book")
	}
}

func TestCreateBookRejectsNegativeInventory(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := CreateBook(context.Background(), database, testBook("Dune"), -1); err == nil {
		t.Error("expected error for negative inventory")
	}
}

func TestListBooksOrderedByTitle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateBook(ctx, database, testBook("Neuromancer"), 1)
	CreateBook(ctx, database, testBook("Dune"), 1)

	books, err := ListBooks(ctx, database)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 2 || books[0].Title != "Dune" || books[1].Title != "Neuromancer" {
		t.Errorf("unexpected order: %+v", books)
	}
}

func TestUpdateBookKeepsInventory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book, _ := CreateBook(ctx, database, testBook("Dune"), 4)

	in := testBook("Dune Messiah")
	in.Cover = model.CoverSoft
	ok, err := UpdateBook(ctx, database, book.ID, in)
	if err != nil || !ok {
		t.Fatalf("UpdateBook: %v %v", ok, err)
	}

	got, _ := GetBook(ctx, database, book.ID)
	if got.Title != "Dune Messiah" || got.Cover != model.CoverSoft {
		t.Errorf("book not updated: %+v", got)
	}
	if got.Inventory != 4 {
		t.Errorf("inventory changed by update: %d", got.Inventory)
	}

	ok, _ = UpdateBook(ctx, database, book.ID+1, in)
	if ok {
		t.Error("expected false for nonexistent book")
	}
}

func TestDecrementInventoryStopsAtZero(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book, _ := CreateBook(ctx, database, testBook("Dune"), 1)

	ok, err := DecrementInventory(ctx, database, book.ID)
	if err != nil || !ok {
		t.Fatalf("first decrement: %v %v", ok, err)
	}

	ok, err = DecrementInventory(ctx, database, book.ID)
	if err != nil {
		t.Fatalf("second decrement: %v", err)
	}
	if ok {
		t.Error("expected decrement at zero to report false")
	}

	n, _ := BookAvailability(ctx, database, book.ID)
	if n != 0 {
		t.Errorf("expected inventory 0, got %d", n)
	}
}

func TestIncrementInventory(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book, _ := CreateBook(ctx, database, testBook("Dune"), 0)

	if err := IncrementInventory(ctx, database, book.ID); err != nil {
		t.Fatalf("IncrementInventory: %v", err)
	}
	n, _ := BookAvailability(ctx, database, book.ID)
	if n != 1 {
		t.Errorf("expected inventory 1, got %d", n)
	}

	if err := IncrementInventory(ctx, database, book.ID+1); err == nil {
		t.Error("expected error for nonexistent book")
	}
}

func TestBookImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book, _ := CreateBook(ctx, database, testBook("Dune"), 1)

	data, _, err := GetBookImage(ctx, database, book.ID)
	if err != nil || data != nil {
		t.Fatalf("expected no image, got %v %v", data, err)
	}

	ok, err := SetBookImage(ctx, database, book.ID, []byte{0xff, 0xd8}, "image/jpeg")
	if err != nil || !ok {
		t.Fatalf("SetBookImage: %v %v", ok, err)
	}

	data, mime, _ := GetBookImage(ctx, database, book.ID)
	if len(data) != 2 || mime != "image/jpeg" {
		t.Errorf("unexpected image %v %q", data, mime)
	}

	got, _ := GetBook(ctx, database, book.ID)
	if !got.HasImage {
		t.Error("expected HasImage after upload")
	}
}

func TestDeleteBookCascadesBorrowings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	book, _ := CreateBook(ctx, database, testBook("Dune"), 1)
	user, _ := CreateUser(ctx, database, "a@example.com", "", "", "h", model.RoleUser)
	today := model.DateOf(testNow)
	InsertBorrowing(ctx, database, book.ID, user.ID, today, today.AddDays(7))

	ok, err := DeleteBook(ctx, database, book.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteBook: %v %v", ok, err)
	}

	list, _ := ListBorrowings(ctx, database, BorrowingQuery{})
	if len(list) != 0 {
		t.Errorf("expected borrowings to be deleted with the book, got %d", len(list))
	}
}
