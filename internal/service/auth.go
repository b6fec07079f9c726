package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"smarthome_sync/internal/api"
	"smarthome_sync/internal/logger"
	"smarthome_sync/internal/models"
	"smarthome_sync/internal/pipeline"
	"smarthome_sync/internal/session"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type AuthService struct {
	api      *api.Client
	sessions *session.Store
	log      *logger.Logger
}

func NewAuthService(client *api.Client, log *logger.Logger) *AuthService {
	return &AuthService{api: client, sessions: client.Pipeline().Sessions(), log: logger.OrNop(log)}
}

// SignIn exchanges credentials for a token and installs it as a new session generation.
func (s *AuthService) SignIn(ctx context.Context, creds models.Credentials) error {
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}
	token, err := s.api.SignIn(ctx, creds)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionExpired) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("sign in: %w", err)
	}
	s.sessions.SetCredential(token)
	cred, _ := s.sessions.Credential()
	s.log.Infow("signed_in", "username", creds.Username, "generation", cred.Generation)
	return nil
}

func (s *AuthService) SignOut() {
	s.sessions.Clear()
	s.log.Infow("signed_out")
}

func (s *AuthService) SignedIn() bool {
	_, ok := s.sessions.Credential()
	return ok
}

// WatchExpiry signs out on every expiry episode and then calls fn, if any.
func (s *AuthService) WatchExpiry(fn func(session.ExpiryEvent)) (cancel func()) {
	return s.sessions.OnExpired(func(ev session.ExpiryEvent) {
		s.SignOut()
		if fn != nil {
			fn(ev)
		}
	})
}
