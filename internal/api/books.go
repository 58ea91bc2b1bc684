package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksHandler handles the book catalog endpoints.
type BooksHandler struct {
	DB *sql.DB
}

type bookRequest struct {
	Title    string          `json:"title" validate:"required,booktext"`
	Author   string          `json:"author" validate:"required,booktext"`
	Cover    string          `json:"cover" validate:"required,cover"`
	DailyFee decimal.Decimal `json:"daily_fee" validate:"dailyfee"`
}

type createBookRequest struct {
	bookRequest
	Inventory int `json:"inventory" validate:"gte=0"`
}

func (req bookRequest) input() store.BookInput {
	return store.BookInput{
		Title:    req.Title,
		Author:   req.Author,
		Cover:    model.Cover(req.Cover),
		DailyFee: req.DailyFee,
	}
}

// checkFee rejects fees with more than two decimal places.
func checkFee(w http.ResponseWriter, fee decimal.Decimal) bool {
	if !fee.Equal(fee.Round(2)) {
		jsonFieldError(w, "daily_fee", "must have at most 2 decimal places")
		return false
	}
	return true
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid book id")
		return 0, false
	}
	return id, true
}

// List handles GET /api/books.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := store.ListBooks(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list books", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return
	}
	if book == nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Create handles POST /api/books.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) || !checkFee(w, req.DailyFee) {
		return
	}

	book, err := store.CreateBook(r.Context(), h.DB, req.input(), req.Inventory)
	if err != nil {
		slog.Error("failed to create book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	slog.Info("book created", "user", GetClaims(r.Context()).Email, "book", book.Title, "inventory", book.Inventory)
	jsonResponse(w, http.StatusCreated, book)
}

// Update handles PUT /api/books/{id}. Inventory is not editable here.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) || !checkFee(w, req.DailyFee) {
		return
	}

	updated, err := store.UpdateBook(r.Context(), h.DB, id, req.input())
	if err != nil {
		slog.Error("failed to update book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update book")
		return
	}
	if !updated {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return
	}
	if book == nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	slog.Info("book updated", "user", GetClaims(r.Context()).Email, "book", req.Title)
	jsonResponse(w, http.StatusOK, book)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	deleted, err := store.DeleteBook(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to delete book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete book")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	slog.Info("book deleted", "user", GetClaims(r.Context()).Email, "book_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles PUT /api/books/{id}/image.
func (h *BooksHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonFieldError(w, "image", "image file required")
		return
	}
	defer file.Close()

	processed, err := imaging.Process(file)
	if err != nil {
		jsonFieldError(w, "image", err.Error())
		return
	}

	saved, err := store.SetBookImage(r.Context(), h.DB, id, processed.Data, processed.MIME)
	if err != nil {
		slog.Error("failed to save book image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}
	if !saved {
		jsonError(w, http.StatusNotFound, "book not found")
		return
	}

	slog.Info("book image uploaded", "user", GetClaims(r.Context()).Email, "book_id", id, "bytes", len(processed.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/books/{id}/image.
func (h *BooksHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetBookImage(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get book image", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
