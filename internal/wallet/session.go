// Package wallet holds connected wallet sessions and their signing capability.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// ErrNoSession means no wallet is connected for the request.
var ErrNoSession = errors.New("no wallet connected")

// SignFunc signs tx on behalf of the session's wallet.
type SignFunc func(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)

// Profile is optional user metadata supplied by the wallet provider.
type Profile struct {
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Session is a connected wallet.
type Session struct {
	ID        string
	PublicKey solana.PublicKey
	Sign      SignFunc
	Profile   *Profile
}

// Validate reports whether the session can authorize mutations.
func (s *Session) Validate() error {
	if s == nil || s.PublicKey.IsZero() || s.Sign == nil {
		return ErrNoSession
	}
	return nil
}

// Provider connects a wallet.
type Provider interface {
	Connect(ctx context.Context) (*Session, error)
}

// Registry tracks sessions opened through the API.
type Registry struct {
	provider Provider

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds a registry that opens sessions through provider.
func NewRegistry(provider Provider) *Registry {
	return &Registry{provider: provider, sessions: make(map[string]*Session)}
}

// Open connects the wallet and registers a new session.
func (r *Registry) Open(ctx context.Context) (*Session, error) {
	s, err := r.provider.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect wallet: %w", err)
	}
	s.ID = uuid.NewString()
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Close disconnects a session. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
