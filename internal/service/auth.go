package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/trackitnow/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of an issued session token.
const TokenTTL = 24 * time.Hour

// usernamePattern keeps usernames inside the SNS topic name alphabet so each
// user maps to a distinct topic.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// AuthService handles signup, login and session token operations.
type AuthService struct {
	users      domain.LedgerRepository
	jwtSecret  []byte
	bcryptCost int
	timeout    time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(users domain.LedgerRepository, jwtSecret string, bcryptCost int) *AuthService {
	return &AuthService{
		users:      users,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
		timeout:    DefaultStoreTimeout,
	}
}

// Register creates a user record with empty order lists and the default
// delivery status.
func (s *AuthService) Register(ctx context.Context, username, email, password, confirmPassword string) (*domain.UserRecord, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email, and password are required", domain.ErrInvalidInput)
	}
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-64 letters, digits, '_' or '-'", domain.ErrInvalidInput)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: email address is not valid", domain.ErrInvalidInput)
	}
	if password != confirmPassword {
		return nil, fmt.Errorf("%w: passwords do not match", domain.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.UserRecord{
		Username:        username,
		Email:           email,
		PasswordHash:    string(hash),
		PickupLocations: []string{},
		DropLocations:   []string{},
		DeliveryStatus:  domain.DefaultDeliveryStatus,
	}
	createCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.users.Create(createCtx, user); err != nil {
		return nil, storeErr("create user", err)
	}

	return user, nil
}

// Login verifies credentials and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.GetUser(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrUnauthorized
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}
	return token, nil
}

// ValidateToken parses and validates a JWT and returns the username held in
// its sub claim.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}

// GetUser loads the record of an authenticated user. Failures other than
// ErrUserNotFound are reported as ErrStoreUnavailable.
func (s *AuthService) GetUser(ctx context.Context, username string) (*domain.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

func (s *AuthService) generateJWT(user *domain.UserRecord) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.Username,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(TokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
