package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometrix/backend/apperr"
	"github.com/prometrix/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubMailer struct {
	mu         sync.Mutex
	resetToken string
	resetErr   error
	changed    int
}

func (m *stubMailer) SendPasswordResetEmail(to, name, rawToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resetToken = rawToken
	return nil
}

func (m *stubMailer) SendPasswordChangedEmail(to, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed++
	return nil
}

func (m *stubMailer) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetToken
}

func authTestServiceWithMailer(t *testing.T, mailer Mailer) (*AuthService, *repository.GORMRepository) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "Failed to create test database")

	repo := repository.NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate(), "Failed to migrate test database")

	auth := NewAuthService(repo, NewMemoryRevocationStore(), mailer, JWTConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
	})
	return auth, repo
}

func authTestService(t *testing.T) (*AuthService, *repository.GORMRepository) {
	return authTestServiceWithMailer(t, NewEmailService(EmailConfig{}))
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := authTestService(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Jordan", "jordan@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "user", registered.User.Role)

	// Same email again conflicts.
	_, err = auth.Register(ctx, "Jordan", "jordan@example.com", "password123")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	loggedIn, err := auth.Login(ctx, "jordan@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, loggedIn.Token)

	// Wrong password and unknown email both read as Unauthorized.
	_, err = auth.Login(ctx, "jordan@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = auth.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestLoginInactiveUser(t *testing.T) {
	auth, repo := authTestService(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Sam", "sam@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateUserFields(ctx, registered.User.ID, map[string]interface{}{
		"is_active": false,
	}))

	_, err = auth.Login(ctx, "sam@example.com", "password123")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestForgotPasswordEmailFailureRollsBack(t *testing.T) {
	mailer := &stubMailer{resetErr: errors.New("smtp unreachable")}
	auth, repo := authTestServiceWithMailer(t, mailer)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Avery", "avery@example.com", "password123")
	require.NoError(t, err)

	err = auth.ForgotPassword(ctx, "avery@example.com")
	require.Error(t, err)

	// The undelivered token is rolled back, leaving no pending reset.
	user, err := repo.GetUserByID(ctx, registered.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Empty(t, user.ResetPasswordToken)
	assert.Nil(t, user.ResetPasswordExpires)
}

func TestPasswordResetFlow(t *testing.T) {
	mailer := &stubMailer{}
	auth, repo := authTestServiceWithMailer(t, mailer)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Blair", "blair@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, auth.ForgotPassword(ctx, "blair@example.com"))
	rawToken := mailer.lastResetToken()
	require.NotEmpty(t, rawToken)

	// Only the hash is persisted.
	user, err := repo.GetUserByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ResetPasswordToken)
	assert.NotEqual(t, rawToken, user.ResetPasswordToken)
	assert.NotNil(t, user.ResetPasswordExpires)

	// A made-up token is rejected without touching the account.
	err = auth.ResetPassword(ctx, "0000000000000000000000000000000000000000000000000000000000000000", "newpassword1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, auth.ResetPassword(ctx, rawToken, "newpassword1"))

	// The reset fields are consumed.
	user, err = repo.GetUserByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Empty(t, user.ResetPasswordToken)
	assert.Nil(t, user.ResetPasswordExpires)

	// The old password is gone, the new one works.
	_, err = auth.Login(ctx, "blair@example.com", "password123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = auth.Login(ctx, "blair@example.com", "newpassword1")
	assert.NoError(t, err)

	// The consumed token cannot be replayed.
	err = auth.ResetPassword(ctx, rawToken, "anotherpassword")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	mailer := &stubMailer{}
	auth, repo := authTestServiceWithMailer(t, mailer)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Quinn", "quinn@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, auth.ForgotPassword(ctx, "quinn@example.com"))
	rawToken := mailer.lastResetToken()
	require.NotEmpty(t, rawToken)

	expired := time.Now().Add(-time.Minute)
	require.NoError(t, repo.UpdateUserFields(ctx, registered.User.ID, map[string]interface{}{
		"reset_password_expires": expired,
	}))

	err = auth.ResetPassword(ctx, rawToken, "newpassword1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	// The expired token changed nothing.
	_, err = auth.Login(ctx, "quinn@example.com", "password123")
	assert.NoError(t, err)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	mailer := &stubMailer{}
	auth, _ := authTestServiceWithMailer(t, mailer)

	// Unknown addresses succeed silently and send nothing.
	require.NoError(t, auth.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Empty(t, mailer.lastResetToken())
}

func TestVerifyToken(t *testing.T) {
	auth, _ := authTestService(t)

	token, err := auth.IssueToken("some-user-id")
	require.NoError(t, err)

	claims, err := auth.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "some-user-id", claims.UserID)

	_, err = auth.VerifyToken("not-a-token")
	assert.Error(t, err)

	// A token signed with a different secret is rejected.
	other := NewAuthService(nil, NewMemoryRevocationStore(), NewEmailService(EmailConfig{}), JWTConfig{
		Secret: "different-secret",
		Expiry: time.Hour,
	})
	forged, err := other.IssueToken("some-user-id")
	require.NoError(t, err)
	_, err = auth.VerifyToken(forged)
	assert.Error(t, err)
}

func protectedProbe(auth *AuthService) http.Handler {
	return auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			http.Error(w, "no user", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(user.ID))
	}))
}

func TestMiddleware(t *testing.T) {
	auth, repo := authTestService(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Riley", "riley@example.com", "password123")
	require.NoError(t, err)
	handler := protectedProbe(auth)

	t.Run("Valid token passes and resolves the user", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "Bearer "+registered.Token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, registered.User.ID, rec.Body.String())
	})

	t.Run("Missing header is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/probe", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Malformed header is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", registered.Token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Garbage token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Deactivated user is rejected", func(t *testing.T) {
		require.NoError(t, repo.UpdateUserFields(ctx, registered.User.ID, map[string]interface{}{
			"is_active": false,
		}))
		defer repo.UpdateUserFields(ctx, registered.User.ID, map[string]interface{}{
			"is_active": true,
		})

		req := httptest.NewRequest("GET", "/probe", nil)
		req.Header.Set("Authorization", "Bearer "+registered.Token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutRevokesToken(t *testing.T) {
	auth, _ := authTestService(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Casey", "casey@example.com", "password123")
	require.NoError(t, err)
	handler := protectedProbe(auth)

	req := httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	claims, err := auth.VerifyToken(registered.Token)
	require.NoError(t, err)
	require.NoError(t, auth.Logout(ctx, registered.Token, claims.ExpiresAt.Time))

	// The still-unexpired token no longer passes the gate.
	req = httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Other sessions are untouched by the revocation.
	other, err := auth.Register(ctx, "Drew", "drew@example.com", "password123")
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+other.Token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	auth, repo := authTestService(t)
	ctx := context.Background()

	registered, err := auth.Register(ctx, "Morgan", "morgan@example.com", "password123")
	require.NoError(t, err)

	adminOnly := auth.Middleware(auth.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/admin-probe", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	rec := httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.NoError(t, repo.UpdateUserFields(ctx, registered.User.ID, map[string]interface{}{
		"role": "admin",
	}))

	req = httptest.NewRequest("GET", "/admin-probe", nil)
	req.Header.Set("Authorization", "Bearer "+registered.Token)
	rec = httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
