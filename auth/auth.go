// Package auth handles account registration, login, and bearer-token
// validation. Passwords are hashed with bcrypt; sessions are stateless HS256
// JWTs carrying the user id and email.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/rustyeddy/tradecoach/internal/id"
	"github.com/rustyeddy/tradecoach/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrTokenInvalid       = errors.New("invalid or expired token")
)

const minPasswordLen = 8

// Service issues and validates tokens against the user store.
type Service struct {
	users    store.Store
	secret   []byte
	tokenTTL time.Duration
}

func NewService(users store.Store, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL == 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{users: users, secret: []byte(secret), tokenTTL: tokenTTL}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Register creates a user and returns it with a fresh token.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (store.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return store.User{}, "", fmt.Errorf("invalid email address")
	}
	if len(password) < minPasswordLen {
		return store.User{}, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, "", err
	}

	u := store.User{
		ID:           id.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrExists) {
			return store.User{}, "", ErrEmailTaken
		}
		return store.User{}, "", err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return store.User{}, "", err
	}
	log.Printf("auth: user registered %s", u.Email)
	return u, token, nil
}

// Login checks credentials and returns the user with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, string, error) {
	u, err := s.users.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, "", ErrInvalidCredentials
		}
		return store.User{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return store.User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return store.User{}, "", err
	}
	log.Printf("auth: user logged in %s", u.Email)
	return u, token, nil
}

func (s *Service) issueToken(u store.User) (string, error) {
	now := time.Now()
	c := claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// UserFromToken resolves a raw JWT back to its user record.
func (s *Service) UserFromToken(ctx context.Context, token string) (store.User, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" {
		return store.User{}, ErrTokenInvalid
	}

	u, err := s.users.UserByID(ctx, c.Subject)
	if err != nil {
		return store.User{}, ErrTokenInvalid
	}
	return u, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, bool) {
	parts := strings.Fields(authorization)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}
