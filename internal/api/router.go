package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, svc *lending.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	booksHandler := &BooksHandler{DB: db}
	borrowingsHandler := &BorrowingsHandler{Lending: svc}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login and registration.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/users", usersHandler.Register)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Own profile.
	mux.Handle("GET /api/users/me", authMW(http.HandlerFunc(usersHandler.Me)))
	mux.Handle("PUT /api/users/me", authMW(http.HandlerFunc(usersHandler.UpdateMe)))

	// User administration (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("PUT /api/users/{id}/role", authMW(requireAdmin(http.HandlerFunc(usersHandler.UpdateRole))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Books: read (anyone), write (admin).
	mux.HandleFunc("GET /api/books", booksHandler.List)
	mux.HandleFunc("GET /api/books/{id}", booksHandler.Get)
	mux.HandleFunc("GET /api/books/{id}/image", booksHandler.GetImage)
	mux.Handle("POST /api/books", authMW(requireAdmin(http.HandlerFunc(booksHandler.Create))))
	mux.Handle("PUT /api/books/{id}", authMW(requireAdmin(http.HandlerFunc(booksHandler.Update))))
	mux.Handle("DELETE /api/books/{id}", authMW(requireAdmin(http.HandlerFunc(booksHandler.Delete))))
	mux.Handle("PUT /api/books/{id}/image", authMW(requireAdmin(http.HandlerFunc(booksHandler.UploadImage))))

	// Borrowings (all authenticated users, scoped to what they may see).
	mux.Handle("GET /api/borrowings", authMW(http.HandlerFunc(borrowingsHandler.List)))
	mux.Handle("POST /api/borrowings", authMW(http.HandlerFunc(borrowingsHandler.Create)))
	mux.Handle("GET /api/borrowings/{id}", authMW(http.HandlerFunc(borrowingsHandler.Get)))
	mux.Handle("POST /api/borrowings/{id}/return", authMW(http.HandlerFunc(borrowingsHandler.Return)))

	return mux
}
