package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometrix/backend/apperr"
	"github.com/prometrix/backend/models"
	"github.com/prometrix/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenLifetime = 15 * time.Minute

type AuthService struct {
	repo        *repository.GORMRepository
	revocations RevocationStore
	email       Mailer
	jwtSecret   []byte
	tokenExpiry time.Duration
}

type TokenClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type AuthResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func NewAuthService(repo *repository.GORMRepository, revocations RevocationStore, email Mailer, config JWTConfig) *AuthService {
	return &AuthService{
		repo:        repo,
		revocations: revocations,
		email:       email,
		jwtSecret:   []byte(config.Secret),
		tokenExpiry: config.Expiry,
	}
}

// generateSecureToken generates a cryptographically secure random token
func (s *AuthService) generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA256 hash of the token for secure storage
func (s *AuthService) hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// IssueToken signs a session token binding the user id to an expiry claim.
func (s *AuthService) IssueToken(userID string) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken checks signature and expiry. It does NOT consult the
// revocation list; the middleware does that separately so logout takes
// effect before natural expiry.
func (s *AuthService) VerifyToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsedToken.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}

// Register creates a new user and signs them in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, apperr.ErrConflict
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     "user",
		IsActive: true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("User registered", "user_id", user.ID, "email", user.Email)
	return &AuthResponse{User: user, Token: token}, nil
}

// Login authenticates credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.ErrUnauthorized
	}

	if !user.IsActive {
		return nil, apperr.ErrForbidden
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("User logged in", "user_id", user.ID, "email", user.Email)
	return &AuthResponse{User: user, Token: token}, nil
}

// Logout blacklists the presented token until its original expiry, at which
// point the revocation store drops the entry on its own.
func (s *AuthService) Logout(ctx context.Context, token string, expiresAt time.Time) error {
	if err := s.revocations.Revoke(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	slog.Info("Token revoked")
	return nil
}

// ForgotPassword writes a hashed reset token with a 15-minute expiry and
// mails the raw token. If the email cannot be delivered, the just-written
// fields are rolled back so the user is not left with a pending reset they
// never received. Unknown addresses return success to avoid account
// enumeration.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil || !user.IsActive {
		slog.Info("Password reset requested for unknown or inactive email", "email", email)
		return nil
	}

	rawToken, err := s.generateSecureToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expires := time.Now().Add(resetTokenLifetime)
	err = s.repo.UpdateUserFields(ctx, user.ID, map[string]interface{}{
		"reset_password_token":   s.hashToken(rawToken),
		"reset_password_expires": expires,
	})
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.email.SendPasswordResetEmail(user.Email, user.Name, rawToken); err != nil {
		slog.Error("Failed to send reset email, rolling back reset token", "error", err, "user_id", user.ID)
		if rollbackErr := s.clearResetFields(ctx, user.ID); rollbackErr != nil {
			slog.Error("Failed to roll back reset token", "error", rollbackErr, "user_id", user.ID)
		}
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	slog.Info("Password reset email sent", "user_id", user.ID)
	return nil
}

// ResetPassword consumes a raw reset token, sets the new password, and fires
// a best-effort confirmation email.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	user, err := s.repo.GetUserByResetToken(ctx, s.hashToken(rawToken))
	if err != nil {
		return fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user == nil {
		return apperr.ErrUnauthorized
	}
	if user.ResetPasswordExpires == nil || !user.ResetPasswordExpires.After(time.Now()) {
		return apperr.ErrUnauthorized
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.repo.UpdateUserFields(ctx, user.ID, map[string]interface{}{
		"password":               string(hashedPassword),
		"reset_password_token":   "",
		"reset_password_expires": nil,
	})
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	// Best-effort confirmation; a delivery failure never fails the reset.
	go func(email, name string) {
		if err := s.email.SendPasswordChangedEmail(email, name); err != nil {
			slog.Error("Failed to send password-changed email", "error", err, "email", email)
		}
	}(user.Email, user.Name)

	slog.Info("Password reset completed", "user_id", user.ID)
	return nil
}

func (s *AuthService) clearResetFields(ctx context.Context, userID string) error {
	return s.repo.UpdateUserFields(ctx, userID, map[string]interface{}{
		"reset_password_token":   "",
		"reset_password_expires": nil,
	})
}

// Context helpers. The middleware stores the resolved user plus the raw
// token and its claims; logout needs the exp claim without re-decoding.

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value("user").(*models.User)
	return user, ok
}

func TokenFromContext(ctx context.Context) (string, *TokenClaims, bool) {
	token, ok := ctx.Value("auth_token").(string)
	if !ok {
		return "", nil, false
	}
	claims, ok := ctx.Value("auth_claims").(*TokenClaims)
	if !ok {
		return "", nil, false
	}
	return token, claims, true
}

// Middleware gates every protected route. A missing or malformed bearer
// header, a revoked token, a failed signature/expiry check, and a missing or
// inactive user all produce the same 401 so callers cannot probe which check
// failed.
func (s *AuthService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		// Reject tokens explicitly invalidated via logout.
		revoked, err := s.revocations.IsRevoked(r.Context(), token)
		if err != nil {
			slog.Error("Revocation check failed", "error", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if revoked {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := s.VerifyToken(token)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := s.repo.GetUserByID(r.Context(), claims.UserID)
		if err != nil {
			slog.Error("Failed to resolve token user", "error", err, "user_id", claims.UserID)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if user == nil || !user.IsActive {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "user", user)
		ctx = context.WithValue(ctx, "auth_token", token)
		ctx = context.WithValue(ctx, "auth_claims", claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole restricts a route group to the given roles. Runs after
// Middleware so the user is already in the context.
func (s *AuthService) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Forbidden", http.StatusForbidden)
		})
	}
}
