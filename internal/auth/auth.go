// Package auth tracks the current user identity and its resolution state.
//
// The facade's readiness signal is gated on the initial identity having
// resolved at least once, mirroring how the surrounding application waits
// for its auth provider before rendering anything.
package auth

import "sync"

// User is an authenticated identity.
type User struct {
	ID string
}

// State holds the current (nullable) user and signals resolution and
// subsequent changes. It is safe for concurrent use; Changes is meant for a
// single consumer.
type State struct {
	mu       sync.Mutex
	user     *User
	resolved chan struct{}
	once     sync.Once
	changes  chan *User
}

// NewState creates an unresolved auth state.
func NewState() *State {
	return &State{
		resolved: make(chan struct{}),
		changes:  make(chan *User, 1),
	}
}

// NewResolved creates a state already resolved to the given user. A nil
// user means resolved-but-signed-out.
func NewResolved(u *User) *State {
	s := NewState()
	s.Set(u)
	return s
}

// Set records a sign-in (non-nil) or sign-out (nil) and marks the state
// resolved on first call.
func (s *State) Set(u *User) {
	s.mu.Lock()
	s.user = u
	// Coalesce under the lock: only the latest identity matters, and the
	// lock keeps this the sole sender so the refill cannot block.
	select {
	case s.changes <- u:
	default:
		select {
		case <-s.changes:
		default:
		}
		s.changes <- u
	}
	s.mu.Unlock()

	s.once.Do(func() { close(s.resolved) })
}

// Current returns the current user, nil when signed out or unresolved.
func (s *State) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Resolved is closed once the initial identity has been determined.
func (s *State) Resolved() <-chan struct{} { return s.resolved }

// Changes delivers identity changes, coalesced to the latest value.
func (s *State) Changes() <-chan *User { return s.changes }

// Registry maps API bearer tokens to user identities.
type Registry struct {
	byToken map[string]User
}

// NewRegistry builds a token registry.
func NewRegistry() *Registry {
	return &Registry{byToken: make(map[string]User)}
}

// Register associates a token with a user id.
func (r *Registry) Register(token, userID string) {
	r.byToken[token] = User{ID: userID}
}

// Lookup resolves a bearer token to a user.
func (r *Registry) Lookup(token string) (User, bool) {
	u, ok := r.byToken[token]
	return u, ok
}
