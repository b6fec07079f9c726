package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smarthome_sync/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = time.Hour

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
)

// Auth issues and verifies the simulator's HS256 bearer tokens.
type Auth struct {
	users  repository.Authorization
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewAuth(users repository.Authorization, secret string, ttl time.Duration, clock clockwork.Clock) *Auth {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Auth{users: users, secret: []byte(secret), ttl: ttl, clock: clock}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// SignUp hashes password and creates a new account.
func (a *Auth) SignUp(ctx context.Context, username, password string) (int, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("invalid password: %w", err)
	}
	return a.users.Create(ctx, username, hash)
}

// GenerateToken validates credentials and returns a signed token.
func (a *Auth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}
	return a.issueToken(u.ID)
}

// ParseToken verifies the token against the auth clock and returns the user id.
func (a *Auth) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.clock.Now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (a *Auth) issueToken(userID int) (string, error) {
	now := a.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	return token.SignedString(a.secret)
}
