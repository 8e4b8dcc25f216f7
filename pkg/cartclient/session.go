package cartclient

import (
	"context"
	"errors"
	"sync"
)

// ErrAlreadyAuthenticated is returned by Login on a session that has
// already switched to the server cart.
var ErrAlreadyAuthenticated = errors.New("cartclient: session already authenticated")

// ErrNotAuthenticated is returned by RetryMerge on a guest session.
var ErrNotAuthenticated = errors.New("cartclient: session not authenticated")

// RemoteFactory builds the server-backed repository for a verified token.
type RemoteFactory func(token string) CartRepository

// Session owns the cart strategy for one shopper. The repository is chosen
// when the session starts and changes only once, at Login.
type Session struct {
	mu        sync.Mutex
	guest     *LocalCartRepository
	newRemote RemoteFactory
	repo      CartRepository
	authed    bool
}

// NewSession starts a guest session when token is empty and an
// authenticated one otherwise.
func NewSession(guest *LocalCartRepository, token string, newRemote RemoteFactory) *Session {
	s := &Session{guest: guest, newRemote: newRemote, repo: guest}
	if token != "" {
		s.repo = newRemote(token)
		s.authed = true
	}
	return s
}

// Cart returns the repository in effect.
func (s *Session) Cart() CartRepository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authed
}

// Login switches the session to the server cart and merges the guest cart
// into it. It runs once: later calls return ErrAlreadyAuthenticated. If the
// merge is interrupted the session is still authenticated and the unmerged
// guest lines are kept; RetryMerge picks them up.
func (s *Session) Login(ctx context.Context, token string) (*MergeResult, error) {
	s.mu.Lock()
	if s.authed {
		s.mu.Unlock()
		return nil, ErrAlreadyAuthenticated
	}
	remote := s.newRemote(token)
	s.repo = remote
	s.authed = true
	s.mu.Unlock()

	return Merge(ctx, s.guest, remote)
}

// RetryMerge merges whatever is left of the guest cart into the server cart
// after an interrupted Login.
func (s *Session) RetryMerge(ctx context.Context) (*MergeResult, error) {
	s.mu.Lock()
	authed, remote := s.authed, s.repo
	s.mu.Unlock()
	if !authed {
		return nil, ErrNotAuthenticated
	}
	return Merge(ctx, s.guest, remote)
}
