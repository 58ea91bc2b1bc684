package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// UsersHandler handles registration, the caller's own profile and user
// administration.
type UsersHandler struct {
	DB *sql.DB
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
}

type updateMeRequest struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Password  string `json:"password" validate:"omitempty,min=8"`
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// Register handles POST /api/users. Anyone may register; new accounts are
// never staff.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Email, req.FirstName, req.LastName, string(hash), model.RoleUser)
	if errors.Is(err, store.ErrEmailTaken) {
		jsonFieldError(w, "email", "user with this email already exists")
		return
	}
	if err != nil {
		slog.Error("failed to register user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	slog.Info("user registered", "user", user.Email)
	jsonResponse(w, http.StatusCreated, user)
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdateMe handles PUT /api/users/me.
func (h *UsersHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) {
		return
	}

	if err := store.UpdateUserProfile(r.Context(), h.DB, claims.UserID, req.FirstName, req.LastName); err != nil {
		slog.Error("failed to update profile", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
			slog.Error("failed to update password", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to update password")
			return
		}
	}

	user, _ := store.GetUser(r.Context(), h.DB, claims.UserID)
	slog.Info("user updated own profile", "user", claims.Email)
	jsonResponse(w, http.StatusOK, user)
}

// List handles GET /api/users (admin only).
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := store.ListUsers(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// UpdateRole handles PUT /api/users/{id}/role (admin only).
func (h *UsersHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) {
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id && req.Role != model.RoleAdmin {
		jsonError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	if err := store.UpdateUserRole(r.Context(), h.DB, id, req.Role); err != nil {
		slog.Error("failed to update user role", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	user.Role = req.Role

	slog.Info("user role updated", "user", claims.Email, "target_user", user.Email, "new_role", req.Role)
	jsonResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{id} (admin only).
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	claims := GetClaims(r.Context())
	if claims.UserID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	deleted, err := store.DeleteUser(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to delete user", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}

	slog.Info("user deleted", "user", claims.Email, "deleted_user_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
