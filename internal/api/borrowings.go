package api

import (
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
)

// BorrowingsHandler exposes the lending service over HTTP.
type BorrowingsHandler struct {
	Lending *lending.Service
}

type createBorrowingRequest struct {
	Book               int64  `json:"book" validate:"required,gt=0"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required,datetime=2006-01-02"`
}

// List handles GET /api/borrowings?is_active=true|false&user_id=N.
func (h *BorrowingsHandler) List(w http.ResponseWriter, r *http.Request) {
	var f lending.Filter
	q := r.URL.Query()

	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			jsonFieldError(w, "is_active", "must be true or false")
			return
		}
		f.Active = &active
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonFieldError(w, "user_id", "invalid user id")
			return
		}
		f.UserID = id
	}

	list, err := h.Lending.ListBorrowings(r.Context(), callerFrom(r.Context()), f)
	if err != nil {
		writeLendingError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Borrowing{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// Create handles POST /api/borrowings.
func (h *BorrowingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBorrowingRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) {
		return
	}

	expected, err := model.ParseDate(req.ExpectedReturnDate)
	if err != nil {
		jsonFieldError(w, "expected_return_date", err.Error())
		return
	}

	b, err := h.Lending.CreateBorrowing(r.Context(), callerFrom(r.Context()), lending.CreateRequest{
		BookID:             req.Book,
		ExpectedReturnDate: expected,
	})
	if err != nil {
		writeLendingError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, b)
}

// Get handles GET /api/borrowings/{id}.
func (h *BorrowingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid borrowing id")
		return
	}

	b, err := h.Lending.GetBorrowing(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeLendingError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}

// Return handles POST /api/borrowings/{id}/return.
func (h *BorrowingsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid borrowing id")
		return
	}

	b, err := h.Lending.ReturnBorrowing(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		writeLendingError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, b)
}
