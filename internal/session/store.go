package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/riordi80/vocational-training-final-project/internal/rbac"
)

// Status is the lifecycle state of a Store.
type Status string

// Store lifecycle states.
const (
	StatusLoading       Status = "LOADING"
	StatusAnonymous     Status = "ANONYMOUS"
	StatusAuthenticated Status = "AUTHENTICATED"
)

// Snapshot is an immutable view of a Store.
type Snapshot struct {
	Status   Status
	Identity *rbac.Identity
	Pending  bool
}

// Loaded reports whether the persisted state has been read.
func (s Snapshot) Loaded() bool {
	return s.Status != "" && s.Status != StatusLoading
}

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// Authenticator is the remote API collaborator used for login and registration.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*rbac.Identity, error)
	Register(ctx context.Context, name, email, password string) (*rbac.Identity, error)
}

// Store owns the identity of one browser session. It is the only writer of
// its durable storage; memory and storage change together under mu.
type Store struct {
	storage Storage
	auth    Authenticator
	logger  *slog.Logger

	inflight *semaphore.Weighted
	initOnce sync.Once
	ready    chan struct{}

	mu         sync.Mutex
	status     Status
	identity   *rbac.Identity
	pending    bool
	generation uint64
	subs       map[uint64]func(Snapshot)
	nextSub    uint64

	// clearPending is set while storage still holds an identity that a
	// logout failed to delete. Guarded by mu.
	clearPending bool
}

// NewStore constructs a Store in the LOADING state.
func NewStore(storage Storage, auth Authenticator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage:  storage,
		auth:     auth,
		logger:   logger,
		inflight: semaphore.NewWeighted(1),
		ready:    make(chan struct{}),
		status:   StatusLoading,
		subs:     make(map[uint64]func(Snapshot)),
	}
}

// Start hydrates the store in the background. The returned channel closes
// once the store has left LOADING.
func (s *Store) Start(ctx context.Context) <-chan struct{} {
	go s.Initialize(ctx)
	return s.ready
}

// Ready closes once the store has left LOADING.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Initialize reads the persisted identity. It runs once; concurrent callers
// block until the first call has finished. Unreadable or malformed state
// leaves the session anonymous, and malformed state is deleted.
func (s *Store) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		defer close(s.ready)
		identity := s.load(ctx)

		s.mu.Lock()
		if s.status == StatusLoading {
			s.identity = identity
			s.status = statusFor(identity)
		}
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
	})
}

func (s *Store) load(ctx context.Context) *rbac.Identity {
	data, err := s.storage.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session load", slog.Any("error", err))
		}
		return nil
	}
	var identity rbac.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		s.logger.Warn("discarding corrupt session", slog.Any("error", err))
		if err := s.storage.Clear(ctx); err != nil {
			s.logger.Warn("clear corrupt session", slog.Any("error", err))
		}
		return nil
	}
	return &identity
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Login authenticates through the collaborator and persists the identity.
// On failure the session is left unchanged.
func (s *Store) Login(ctx context.Context, email, password string) (*rbac.Identity, error) {
	s.Initialize(ctx)
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, ErrMissingFields
	}
	return s.authenticate(ctx, func(ctx context.Context) (*rbac.Identity, error) {
		identity, err := s.auth.Login(ctx, email, password)
		if err != nil {
			return nil, classifyLogin(err)
		}
		return identity, nil
	})
}

// Register creates an account through the collaborator and signs it in.
func (s *Store) Register(ctx context.Context, name, email, password string) (*rbac.Identity, error) {
	s.Initialize(ctx)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, ErrMissingFields
	}
	return s.authenticate(ctx, func(ctx context.Context) (*rbac.Identity, error) {
		identity, err := s.auth.Register(ctx, name, email, password)
		if err != nil {
			return nil, classifyRegister(err)
		}
		return identity, nil
	})
}

func (s *Store) authenticate(ctx context.Context, call func(context.Context) (*rbac.Identity, error)) (*rbac.Identity, error) {
	s.Initialize(ctx)
	if !s.inflight.TryAcquire(1) {
		return nil, ErrAuthInFlight
	}
	defer s.inflight.Release(1)

	s.mu.Lock()
	s.pending = true
	gen := s.generation
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	identity, err := call(ctx)
	if err == nil && identity == nil {
		err = &AuthError{Kind: Unknown, Err: rbac.ErrMalformedIdentity}
	}

	var data []byte
	if err == nil {
		if data, err = json.Marshal(identity); err != nil {
			err = &AuthError{Kind: Unknown, Err: fmt.Errorf("session: encode identity: %w", err)}
		}
	}

	s.mu.Lock()
	s.pending = false
	switch {
	case err != nil:
	case s.generation != gen:
		err = &AuthError{Kind: Unknown, Message: "La sesión se cerró durante el inicio de sesión", Err: ErrSuperseded}
	default:
		if saveErr := s.storage.Save(ctx, data); saveErr != nil {
			err = &AuthError{Kind: Unknown, Err: fmt.Errorf("session: persist identity: %w", saveErr)}
			break
		}
		s.identity = identity.Clone()
		s.status = StatusAuthenticated
		s.clearPending = false
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	if err != nil {
		return nil, err
	}
	return snap.Identity, nil
}

// Logout clears the identity from memory and storage. It is idempotent and
// wins over any login still in flight.
func (s *Store) Logout(ctx context.Context) error {
	s.Initialize(ctx)

	s.mu.Lock()
	s.generation++
	err := s.storage.Clear(ctx)
	s.clearPending = err != nil
	s.identity = nil
	s.status = StatusAnonymous
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	if err != nil {
		return fmt.Errorf("session: clear identity: %w", err)
	}
	return nil
}

// ClearPending reports whether a logout left the identity in storage.
func (s *Store) ClearPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearPending
}

// RetryClear deletes the persisted identity a failed logout left behind. It
// does nothing when no clear is pending.
func (s *Store) RetryClear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clearPending {
		return nil
	}
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear identity: %w", err)
	}
	s.clearPending = false
	return nil
}

// Subscribe registers fn for every state change and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Status: s.status, Identity: s.identity.Clone(), Pending: s.pending}
}

func statusFor(identity *rbac.Identity) Status {
	if identity == nil {
		return StatusAnonymous
	}
	return StatusAuthenticated
}
