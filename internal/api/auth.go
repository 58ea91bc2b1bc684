package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/auth"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sql.DB
	JWTSecret string
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) {
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Email, user.Role)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.Email, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateRequest(w, req) {
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonFieldError(w, "new_password", err.Error())
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
		slog.Error("failed to update password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	slog.Info("user changed own password", "user", claims.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	expires := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires); err != nil {
		slog.Error("failed to revoke token", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	slog.Info("user logged out", "user", claims.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
