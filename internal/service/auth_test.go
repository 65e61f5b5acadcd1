package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/trackitnow/internal/domain"
	"github.com/msomdec/trackitnow/internal/repository/sqlite"
	"github.com/msomdec/trackitnow/internal/service"
)

const testJWTSecret = "test-secret-key-for-unit-tests-32b"

func newTestAuthService(t *testing.T) (*service.AuthService, *sqlite.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Use cost 4 for fast tests.
	auth := service.NewAuthService(db.Ledger(), testJWTSecret, 4)
	return auth, db
}

func TestAuthService_Register_Success(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	user, err := auth.Register(ctx, "newbie", "new@example.com", "password123", "password123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Username != "newbie" {
		t.Fatalf("expected username newbie, got %s", user.Username)
	}
	if user.DeliveryStatus != domain.DefaultDeliveryStatus {
		t.Fatalf("expected status %q, got %q", domain.DefaultDeliveryStatus, user.DeliveryStatus)
	}

	stored, err := auth.GetUser(ctx, "newbie")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.Email != "new@example.com" {
		t.Fatalf("expected email new@example.com, got %s", stored.Email)
	}
	if len(stored.PickupLocations) != 0 || len(stored.DropLocations) != 0 {
		t.Fatalf("expected empty order lists, got %v / %v", stored.PickupLocations, stored.DropLocations)
	}
	if stored.PasswordHash == "password123" {
		t.Fatal("password stored in clear text")
	}
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := auth.Register(ctx, "dup", "dup1@example.com", "password123", "password123")
	if err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err = auth.Register(ctx, "dup", "dup2@example.com", "password456", "password456")
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestAuthService_Register_InvalidInput(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		password string
		confirm  string
	}{
		{"empty username", "", "a@b.com", "password123", "password123"},
		{"empty email", "someone", "", "password123", "password123"},
		{"empty password", "someone", "a@b.com", "", ""},
		{"short username", "ab", "a@b.com", "password123", "password123"},
		{"username with space", "two words", "a@b.com", "password123", "password123"},
		{"username with dot", "first.last", "a@b.com", "password123", "password123"},
		{"bad email", "someone", "not-an-email", "password123", "password123"},
		{"display name email", "someone", "Some One <a@b.com>", "password123", "password123"},
		{"weak password", "someone", "a@b.com", "short", "short"},
		{"password mismatch", "someone", "a@b.com", "password123", "different456"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tc.username, tc.email, tc.password, tc.confirm)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "login", "login@example.com", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth.Login(ctx, "login", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "wrongpw", "wrongpw@example.com", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := auth.Login(ctx, "wrongpw", "wrongpassword")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	auth, _ := newTestAuthService(t)

	_, err := auth.Login(context.Background(), "nobody", "password123")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_JWT_GenerateAndValidate(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "jwtuser", "jwt@example.com", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth.Login(ctx, "jwtuser", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	username, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if username != "jwtuser" {
		t.Fatalf("expected username jwtuser, got %s", username)
	}
}

func TestAuthService_JWT_InvalidToken(t *testing.T) {
	auth, _ := newTestAuthService(t)

	_, err := auth.ValidateToken("not-a-valid-jwt")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_JWT_TamperedToken(t *testing.T) {
	auth, _ := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth.Register(ctx, "tamper", "tamper@example.com", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth.Login(ctx, "tamper", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Flip several characters in the signature.
	tampered := token[:len(token)-5] + "XXXXX"
	_, err = auth.ValidateToken(tampered)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}
}

func TestAuthService_JWT_Expired(t *testing.T) {
	auth, _ := newTestAuthService(t)

	claims := jwt.MapClaims{
		"sub": "old",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = auth.ValidateToken(token)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestAuthService_JWT_WrongSecret(t *testing.T) {
	auth1, db := newTestAuthService(t)
	ctx := context.Background()

	if _, err := auth1.Register(ctx, "secret", "secret@example.com", "password123", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := auth1.Login(ctx, "secret", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	auth2 := service.NewAuthService(db.Ledger(), "a-different-secret-that-is-long-enough", 4)
	_, err = auth2.ValidateToken(token)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong secret, got %v", err)
	}
}

func TestAuthService_GetUser_StoreFailureIsUnavailable(t *testing.T) {
	boom := errors.New("database is closed")
	auth := service.NewAuthService(&fakeRepo{getErr: boom}, testJWTSecret, 4)

	_, err := auth.GetUser(context.Background(), "bob")
	if !errors.Is(err, domain.ErrStoreUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected ErrStoreUnavailable wrapping the cause, got %v", err)
	}

	_, err = auth.Login(context.Background(), "bob", "password123")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected login to report ErrStoreUnavailable, got %v", err)
	}
}

func TestAuthService_GetUser_UnknownUser(t *testing.T) {
	auth := service.NewAuthService(&fakeRepo{getErr: domain.ErrUserNotFound}, testJWTSecret, 4)

	_, err := auth.GetUser(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("unknown user must not be reported as unavailable: %v", err)
	}
}

func TestAuthService_GetUser_DeadlineIsUnavailable(t *testing.T) {
	auth := service.NewAuthService(&fakeRepo{block: true}, testJWTSecret, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := auth.GetUser(ctx, "slow")
	if !errors.Is(err, domain.ErrStoreUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected unavailable deadline error, got %v", err)
	}
}
