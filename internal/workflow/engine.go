// Package workflow implements the docket / proof-of-delivery conversation
// state machine. Each session moves between NoDocket, DocketActive and
// EvidencePending in response to classified text, image uploads and resets.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/intent"
	"pod-assistant/internal/observability"
)

const (
	defaultMaxMessageLength = 500
	defaultMaxImageBytes    = 8 << 20
	defaultVerifyTimeout    = 60 * time.Second
)

type DocketStore interface {
	GetDocket(ctx context.Context, id string) (domain.Docket, error)
	UpdateDocketStatus(ctx context.Context, id string, status domain.DocketStatus, verified bool) error
}

type Verifier interface {
	AnalyzePOD(ctx context.Context, img domain.Image, ref domain.DocketRef) (string, error)
}

type Assistant interface {
	Respond(ctx context.Context, utterance string) (string, error)
}

// Action is a contextual next step a renderer can offer as a button.
type Action string

const (
	ActionSearch Action = "search"
	ActionUpload Action = "upload"
	ActionUpdate Action = "update"
	ActionReset  Action = "reset"
)

func actionsFor(p Phase) []Action {
	switch p {
	case PhaseEvidencePending:
		return []Action{ActionUpdate, ActionUpload, ActionReset}
	case PhaseDocketActive:
		return []Action{ActionUpload, ActionReset}
	default:
		return []Action{ActionSearch}
	}
}

// Snapshot is the read model a renderer needs: the full message log plus
// the current state summary.
type Snapshot struct {
	SessionID       string
	Phase           Phase
	ActiveDocket    *domain.Docket
	EvidencePending bool
	Verifying       bool
	Actions         []Action
	Messages        []domain.Message
}

// Turn is the outcome of one user event. Messages holds only the turns
// appended while handling it; Failure is set when the event was answered
// with a recovered error.
type Turn struct {
	Messages []domain.Message
	Failure  *Error
	Snapshot Snapshot
}

type Engine struct {
	store     DocketStore
	verifier  Verifier
	assistant Assistant
	sessions  *Registry

	sampleIDs     []string
	maxMessageLen int
	maxImageBytes int
	verifyTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

type Option func(*Engine)

// WithSampleDocketIDs sets the ids suggested when a lookup misses.
func WithSampleDocketIDs(ids []string) Option {
	return func(e *Engine) {
		e.sampleIDs = append([]string(nil), ids...)
	}
}

func WithLimits(maxMessageLen, maxImageBytes int) Option {
	return func(e *Engine) {
		if maxMessageLen > 0 {
			e.maxMessageLen = maxMessageLen
		}
		if maxImageBytes > 0 {
			e.maxImageBytes = maxImageBytes
		}
	}
}

func WithVerifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.verifyTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		if newID != nil {
			e.newID = newID
		}
	}
}

func NewEngine(store DocketStore, verifier Verifier, assistant Assistant, sessions *Registry, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("workflow: docket store must not be nil")
	}
	if verifier == nil {
		return nil, errors.New("workflow: verifier must not be nil")
	}
	if assistant == nil {
		return nil, errors.New("workflow: assistant must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("workflow: session registry must not be nil")
	}
	e := &Engine{
		store:         store,
		verifier:      verifier,
		assistant:     assistant,
		sessions:      sessions,
		sampleIDs:     domain.SeedDocketIDs(),
		maxMessageLen: defaultMaxMessageLength,
		maxImageBytes: defaultMaxImageBytes,
		verifyTimeout: defaultVerifyTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// OpenSession starts a new conversation in PhaseNoDocket.
func (e *Engine) OpenSession(ctx context.Context) Snapshot {
	s := e.sessions.Open()
	observability.LoggerFromContext(ctx).Info("session opened", "session_id", s.id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// CloseSession drops the session's in-memory state.
func (e *Engine) CloseSession(ctx context.Context, sessionID string) error {
	if !e.sessions.Close(sessionID) {
		return newError(ErrorSessionNotFound, "unknown_session", nil)
	}
	observability.LoggerFromContext(ctx).Info("session closed", "session_id", sessionID)
	return nil
}

func (e *Engine) Snapshot(sessionID string) (Snapshot, error) {
	s, err := e.lockSession(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// SubmitText records a user utterance, classifies it and applies the
// matching transition.
func (e *Engine) SubmitText(ctx context.Context, sessionID, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(text) > e.maxMessageLen {
		return Turn{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	s, err := e.lockSession(sessionID)
	if err != nil {
		return Turn{}, err
	}
	defer s.mu.Unlock()

	start := len(s.messages)
	s.appendMessage(e.message(domain.RoleUser, text, domain.StatusNone))

	in := intent.Classify(text)
	log := observability.LoggerFromContext(ctx).With(
		"session_id", s.id,
		"intent", in.Kind.String(),
		"phase", s.state.Phase(),
	)

	next, reply, failure := e.step(ctx, log, s.state, in)
	s.setState(next)
	if in.Kind == intent.RequestCommit && failure == nil {
		// The docket is delivered; verdicts still in flight must not re-arm it.
		s.epoch++
	}
	s.appendMessage(e.message(domain.RoleAssistant, reply, domain.StatusNone))

	if failure != nil {
		log.Warn("turn failed", "code", failure.Code, "reason", failure.Reason, "err", failure.Err)
	} else {
		log.Info("turn handled", "next_phase", next.Phase())
	}
	return Turn{Messages: s.messagesSince(start), Failure: failure, Snapshot: s.snapshot()}, nil
}

// Reset clears the active docket and any pending evidence.
func (e *Engine) Reset(ctx context.Context, sessionID string) (Turn, error) {
	s, err := e.lockSession(sessionID)
	if err != nil {
		return Turn{}, err
	}
	defer s.mu.Unlock()

	start := len(s.messages)
	s.setState(State{})
	s.epoch++
	// An outstanding verification belongs to the discarded docket; a new
	// upload may start its own.
	s.inflight = ""
	s.appendMessage(e.message(domain.RoleAssistant, msgSessionReset, domain.StatusNone))
	observability.LoggerFromContext(ctx).Info("session reset", "session_id", s.id)
	return Turn{Messages: s.messagesSince(start), Snapshot: s.snapshot()}, nil
}

// step evaluates one classified utterance against st and returns the next
// state and the assistant reply. It never mutates the session.
func (e *Engine) step(ctx context.Context, log *slog.Logger, st State, in intent.Intent) (State, string, *Error) {
	switch in.Kind {
	case intent.DocketLookup:
		return e.lookup(ctx, log, st, in.DocketID)
	case intent.RequestCommit:
		return e.commit(ctx, st)
	default:
		return e.freeform(ctx, st, in.Text)
	}
}

func (e *Engine) lookup(ctx context.Context, log *slog.Logger, st State, id string) (State, string, *Error) {
	d, err := e.store.GetDocket(ctx, id)
	if err != nil {
		reason := "docket_not_found"
		if !errors.Is(err, domain.ErrDocketNotFound) {
			reason = "store_lookup_failed"
			log.Warn("docket lookup failed, reporting as not found", "docket_id", id, "err", err)
		}
		return st, docketNotFoundMessage(id, e.sampleIDs), newError(ErrorNotFound, reason, err)
	}
	return st.WithDocket(d), docketFoundMessage(d), nil
}

func (e *Engine) commit(ctx context.Context, st State) (State, string, *Error) {
	switch st.Phase() {
	case PhaseNoDocket:
		return st, msgProvideDocket, newError(ErrorPreconditionFailed, "no_active_docket", nil)
	case PhaseDocketActive:
		d, _ := st.ActiveDocket()
		return st, noEvidenceMessage(d.ID), newError(ErrorPreconditionFailed, "no_verified_evidence", nil)
	}

	d, _ := st.ActiveDocket()
	if err := e.store.UpdateDocketStatus(ctx, d.ID, domain.DocketDelivered, true); err != nil {
		return st, commitFailedMessage(d.ID), newError(ErrorStore, "docket_update_failed", err)
	}
	return st.Delivered(e.now().UTC()), commitSucceededMessage(d.ID), nil
}

func (e *Engine) freeform(ctx context.Context, st State, text string) (State, string, *Error) {
	reply, err := e.assistant.Respond(ctx, text)
	if err != nil {
		return st, msgAssistantDegraded, newError(ErrorAssistant, "assistant_unavailable", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return st, msgAssistantDegraded, newError(ErrorAssistant, "assistant_empty_reply", nil)
	}
	return st, reply, nil
}

func (e *Engine) lockSession(id string) (*Session, error) {
	s, ok := e.sessions.Get(id)
	if !ok {
		return nil, newError(ErrorSessionNotFound, "unknown_session", nil)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, newError(ErrorSessionNotFound, "session_closed", nil)
	}
	return s, nil
}

func (e *Engine) message(role domain.Role, content string, status domain.MessageStatus) domain.Message {
	return domain.Message{
		ID:        e.newID(),
		Role:      role,
		Content:   content,
		Status:    status,
		CreatedAt: e.now().UTC(),
	}
}
