package workflow

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pod-assistant/internal/domain"
)

// Session holds one conversation: its state, its append-only message log and
// the bookkeeping that correlates asynchronous verifications.
type Session struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	state    State
	messages []domain.Message
	index    map[string]int
	// epoch changes whenever the active docket changes or the session is reset;
	// verdicts computed under an older epoch never touch state.
	epoch uint64
	// inflight is the loading message id of the outstanding verification.
	inflight string
	closed   bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{id: id, createdAt: now, index: make(map[string]int)}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) appendMessage(msg domain.Message) domain.Message {
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return msg
}

// resolve rewrites the loading message identified by id. It reports false if
// the message is unknown or already resolved.
func (s *Session) resolve(id string, status domain.MessageStatus, content string) bool {
	i, ok := s.index[id]
	if !ok || s.messages[i].Status != domain.StatusLoading {
		return false
	}
	s.messages[i].Status = status
	s.messages[i].Content = content
	return true
}

// setState installs next and advances the epoch if the active docket changed.
func (s *Session) setState(next State) {
	prev, hadPrev := s.state.ActiveDocket()
	cur, hasCur := next.ActiveDocket()
	if hadPrev != hasCur || prev.ID != cur.ID {
		s.epoch++
	}
	s.state = next
}

func (s *Session) messagesSince(start int) []domain.Message {
	out := make([]domain.Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Phase:     s.state.Phase(),
		Verifying: s.inflight != "",
		Messages:  s.messagesSince(0),
	}
	if d, ok := s.state.ActiveDocket(); ok {
		snap.ActiveDocket = &d
	}
	_, snap.EvidencePending = s.state.Evidence()
	snap.Actions = actionsFor(snap.Phase)
	return snap
}

// DefaultIdleTimeout is how long a session may go untouched before the
// registry drops it.
const DefaultIdleTimeout = 30 * time.Minute

// Registry tracks open sessions by id. Sessions not touched within the idle
// timeout are closed the next time the registry is used.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// lastSeen is keyed like sessions and guarded by mu.
	lastSeen map[string]time.Time
	idle     time.Duration
	newID    func() string
	now      func() time.Time
}

type RegistryOption func(*Registry)

func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idle = d
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		lastSeen: make(map[string]time.Time),
		idle:     DefaultIdleTimeout,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a new session with a fresh id.
func (r *Registry) Open() *Session {
	r.mu.Lock()
	now := r.now()
	expired := r.sweepLocked(now)
	s := newSession(r.newID(), now.UTC())
	r.sessions[s.id] = s
	r.lastSeen[s.id] = now
	r.mu.Unlock()

	markClosed(expired)
	return s
}

// Get returns an open session and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	now := r.now()
	expired := r.sweepLocked(now)
	s, ok := r.sessions[id]
	if ok {
		r.lastSeen[id] = now
	}
	r.mu.Unlock()

	markClosed(expired)
	return s, ok
}

// Close drops a session. Verifications still running for it are discarded
// when they complete.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	delete(r.lastSeen, id)
	r.mu.Unlock()
	if !ok {
		return false
	}
	markClosed([]*Session{s})
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// sweepLocked removes sessions idle for longer than r.idle and returns them.
// The caller closes them after releasing r.mu.
func (r *Registry) sweepLocked(now time.Time) []*Session {
	var expired []*Session
	for id, seen := range r.lastSeen {
		if now.Sub(seen) <= r.idle {
			continue
		}
		expired = append(expired, r.sessions[id])
		delete(r.sessions, id)
		delete(r.lastSeen, id)
	}
	return expired
}

func markClosed(sessions []*Session) {
	for _, s := range sessions {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	}
}
