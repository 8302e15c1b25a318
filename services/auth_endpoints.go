package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type AuthEndpoints struct {
	authService *AuthService
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func NewAuthEndpoints(authService *AuthService) *AuthEndpoints {
	return &AuthEndpoints{
		authService: authService,
	}
}

func (e *AuthEndpoints) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "Name, email, and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	authResponse, err := e.authService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		slog.Error("Registration failed", "error", err, "email", req.Email)
		writeError(w, err, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration successful",
		"token":   authResponse.Token,
		"user":    authResponse.User.PublicView(),
	})
}

func (e *AuthEndpoints) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	authResponse, err := e.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Error("Login failed", "error", err, "email", req.Email)
		writeError(w, err, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   authResponse.Token,
		"user":    authResponse.User.PublicView(),
	})
}

// LogoutHandler revokes the presented token. The middleware already parsed
// it, so the exp claim is read from the context rather than re-decoded.
func (e *AuthEndpoints) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := TokenFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := e.authService.Logout(r.Context(), token, claims.ExpiresAt.Time); err != nil {
		slog.Error("Logout failed", "error", err)
		http.Error(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	user, _ := UserFromContext(r.Context())
	if user != nil {
		slog.Info("User logged out", "user_id", user.ID)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Logout successful",
	})
}

func (e *AuthEndpoints) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": user.PublicView(),
	})
}

func (e *AuthEndpoints) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := e.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		slog.Error("Forgot-password failed", "error", err, "email", req.Email)
		http.Error(w, "Could not send reset email", http.StatusInternalServerError)
		return
	}

	// Same response whether or not the address exists.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "If that email is registered, a reset link has been sent",
	})
}

func (e *AuthEndpoints) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Token == "" || len(req.Password) < 8 {
		http.Error(w, "Token and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	if err := e.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		slog.Error("Password reset failed", "error", err)
		writeError(w, err, "Password reset failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Password reset successful",
	})
}

// RegisterPublicRoutes mounts the routes that need no session.
func (e *AuthEndpoints) RegisterPublicRoutes(r chi.Router) {
	r.Post("/login", e.LoginHandler)
	r.Post("/register", e.RegisterHandler)
	r.Post("/forgot-password", e.ForgotPasswordHandler)
	r.Post("/reset-password", e.ResetPasswordHandler)
}

// RegisterProtectedRoutes mounts the routes behind the auth gate.
func (e *AuthEndpoints) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/logout", e.LogoutHandler)
	r.Get("/me", e.MeHandler)
}
