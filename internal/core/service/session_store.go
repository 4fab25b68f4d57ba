package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
)

const (
	opLogin  = "login"
	opSignup = "signup"
)

var _ ports.Session = (*SessionStore)(nil)

// SessionStore owns the authenticated identity, the session credential and
// the loading flag. Nothing else mutates them.
//
// Overlapping Login/Signup calls are ordered by initiation: every call (and
// every Logout) takes a new generation, and a response is only applied when
// its generation is still the newest. Storage writes happen under writeMu in
// the same order as the in-memory commits.
type SessionStore struct {
	client   ports.AuthClient
	storage  ports.KeyValueStore
	observer ports.SessionObserver
	log      zerolog.Logger

	captureCredential bool

	mu          sync.Mutex
	user        *domain.Identity
	token       string
	initialized bool
	inflight    int
	generation  uint64

	writeMu  sync.Mutex
	notifyMu sync.Mutex
	initOnce sync.Once

	subMu   sync.Mutex
	subs    map[int]func(ports.SessionState)
	nextSub int
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithObserver reports authentication timings, e.g. to Prometheus.
func WithObserver(o ports.SessionObserver) SessionOption {
	return func(s *SessionStore) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithCredentialCapture persists the token returned alongside the user on a
// successful login or signup.
func WithCredentialCapture(enabled bool) SessionOption {
	return func(s *SessionStore) { s.captureCredential = enabled }
}

// NewSessionStore returns a store that reports loading until Initialize runs.
func NewSessionStore(client ports.AuthClient, storage ports.KeyValueStore, log zerolog.Logger, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		client:   client,
		storage:  storage,
		observer: noopObserver{},
		log:      log.With().Str("component", "session").Logger(),
		subs:     make(map[int]func(ports.SessionState)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize restores a persisted identity and credential. Missing or corrupt
// entries leave the store logged out. Only the first call has any effect.
func (s *SessionStore) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		user := s.restoreUser(ctx)
		token := s.restoreToken(ctx)

		s.mu.Lock()
		// An operation started before Initialize already owns the state.
		if s.generation == 0 {
			s.user = user
			s.token = token
		}
		s.initialized = true
		s.mu.Unlock()

		s.publish()
	})
}

func (s *SessionStore) restoreUser(ctx context.Context) *domain.Identity {
	raw, err := s.storage.Get(ctx, domain.KeyUser)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.log.Warn().Err(err).Msg("read persisted user")
		}
		return nil
	}

	var user *domain.Identity
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.log.Warn().Err(err).Msg("discarding corrupt persisted user")
		return nil
	}
	if user == nil || user.Email == "" {
		s.log.Warn().Msg("discarding persisted user without email")
		return nil
	}
	return user
}

func (s *SessionStore) restoreToken(ctx context.Context) string {
	token, err := s.storage.Get(ctx, domain.KeyToken)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.log.Warn().Err(err).Msg("read persisted token")
		}
		return ""
	}
	return token
}

// Login authenticates against the identity API. A nil error means the user
// is now signed in; otherwise the current user is left untouched.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	return s.authenticate(ctx, opLogin, func(ctx context.Context) (*ports.AuthResult, error) {
		return s.client.Login(ctx, email, password)
	})
}

// Signup registers a new account and signs it in. Name is optional.
func (s *SessionStore) Signup(ctx context.Context, email, password, name string) error {
	return s.authenticate(ctx, opSignup, func(ctx context.Context) (*ports.AuthResult, error) {
		return s.client.Signup(ctx, email, password, name)
	})
}

func (s *SessionStore) authenticate(ctx context.Context, op string, call func(context.Context) (*ports.AuthResult, error)) (err error) {
	gen := s.begin()
	defer s.end()

	s.observer.AuthStarted(op)
	start := time.Now()
	defer func() {
		s.observer.AuthFinished(op, Outcome(err), time.Since(start).Seconds())
	}()

	res, err := call(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("operation", op).Msg("authentication failed")
		return err
	}

	if !s.commit(ctx, gen, res) {
		s.log.Debug().Str("operation", op).Uint64("generation", gen).Msg("discarding superseded response")
		return domain.ErrSuperseded
	}

	s.log.Info().Str("operation", op).Str("user_id", res.User.ID).Msg("signed in")
	return nil
}

func (s *SessionStore) begin() uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.inflight++
	s.mu.Unlock()

	s.publish()
	return gen
}

func (s *SessionStore) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()

	s.publish()
}

// commit applies a successful response if gen is still the newest operation,
// then persists it. Returns false when the response is stale.
func (s *SessionStore) commit(ctx context.Context, gen uint64, res *ports.AuthResult) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	user := res.User
	capture := s.captureCredential && res.Token != ""

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	s.user = &user
	if capture {
		s.token = res.Token
	}
	s.mu.Unlock()

	s.publish()

	raw, err := json.Marshal(user)
	if err != nil {
		s.log.Error().Err(err).Msg("encode user")
		return true
	}
	if err := s.storage.Set(ctx, domain.KeyUser, string(raw)); err != nil {
		s.log.Warn().Err(err).Msg("persist user")
	}
	if capture {
		if err := s.storage.Set(ctx, domain.KeyToken, res.Token); err != nil {
			s.log.Warn().Err(err).Msg("persist token")
		}
	}
	return true
}

// Logout clears the identity and both persisted keys. In-flight logins are
// superseded. It never fails; storage errors are logged.
func (s *SessionStore) Logout(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.generation++
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	s.publish()

	for _, key := range []string{domain.KeyUser, domain.KeyToken} {
		if err := s.storage.Remove(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("remove persisted key")
		}
	}
	s.log.Info().Msg("signed out")
}

// SetCredential stores the bearer token used by document requests. An empty
// token removes it.
func (s *SessionStore) SetCredential(ctx context.Context, token string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if token == "" {
		return s.storage.Remove(ctx, domain.KeyToken)
	}
	return s.storage.Set(ctx, domain.KeyToken, token)
}

// CurrentUser returns a copy of the signed-in identity.
func (s *SessionStore) CurrentUser() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.Identity{}, false
	}
	return *s.user, true
}

// IsLoading is true before Initialize and while any login or signup is pending.
func (s *SessionStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingLocked()
}

// Credential returns the bearer token, if any.
func (s *SessionStore) Credential() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Snapshot returns a copy of the exposed state.
func (s *SessionStore) Snapshot() ports.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := ports.SessionState{
		Loading:     s.loadingLocked(),
		Initialized: s.initialized,
	}
	if s.user != nil {
		u := *s.user
		state.User = &u
	}
	return state
}

func (s *SessionStore) loadingLocked() bool {
	return !s.initialized || s.inflight > 0
}

// Subscribe registers fn to receive a snapshot after every state change.
// Callbacks run synchronously on the goroutine that changed the state and
// must not call Subscribe, the returned cancel function, or any mutating
// method of the store.
func (s *SessionStore) Subscribe(fn func(ports.SessionState)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *SessionStore) publish() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(ports.SessionState), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	state := s.Snapshot()
	for _, fn := range fns {
		fn(state)
	}
}

// Outcome classifies a remote call error for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrSuperseded):
		return "superseded"
	case errors.Is(err, domain.ErrRejected):
		return "rejected"
	case errors.Is(err, domain.ErrUnreachable):
		return "unreachable"
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrNoCredential):
		return "no_credential"
	default:
		return "error"
	}
}

type noopObserver struct{}

func (noopObserver) AuthStarted(string)                  {}
func (noopObserver) AuthFinished(string, string, float64) {}
