package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Service issues bearer tokens for a single configured account.
type Service struct {
	mu       sync.RWMutex
	email    string
	password string
	ttl      time.Duration
	tokens   map[string]time.Time
	now      func() time.Time
}

// NewService creates an auth service. A non-positive ttl means tokens never expire.
func NewService(email, password string, ttl time.Duration) *Service {
	return &Service{
		email:    email,
		password: password,
		ttl:      ttl,
		tokens:   make(map[string]time.Time),
		now:      time.Now,
	}
}

// Login checks the credentials and returns a fresh token.
func (s *Service) Login(_ context.Context, email, password string) (string, error) {
	if email == "" || email != s.email || password != s.password {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = s.now()
	s.mu.Unlock()
	return token, nil
}

// Validate reports whether token was issued by Login and has not expired.
func (s *Service) Validate(_ context.Context, token string) error {
	s.mu.RLock()
	issued, ok := s.tokens[token]
	s.mu.RUnlock()

	if !ok {
		return ErrInvalidToken
	}
	if s.ttl > 0 && s.now().Sub(issued) > s.ttl {
		s.mu.Lock()
		delete(s.tokens, token)
		s.mu.Unlock()
		return ErrInvalidToken
	}
	return nil
}
