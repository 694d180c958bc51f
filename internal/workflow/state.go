package workflow

import (
	"time"

	"pod-assistant/internal/domain"
)

type Phase string

const (
	PhaseNoDocket        Phase = "no_docket"
	PhaseDocketActive    Phase = "docket_active"
	PhaseEvidencePending Phase = "evidence_pending"
)

// State is the per-session workflow state. It is a value: every transition
// returns a new State and the zero value is PhaseNoDocket.
// Evidence can only be held while a docket is active.
type State struct {
	docket      domain.Docket
	hasDocket   bool
	evidence    domain.Evidence
	hasEvidence bool
}

func (s State) Phase() Phase {
	switch {
	case s.hasEvidence:
		return PhaseEvidencePending
	case s.hasDocket:
		return PhaseDocketActive
	default:
		return PhaseNoDocket
	}
}

func (s State) ActiveDocket() (domain.Docket, bool) {
	return s.docket, s.hasDocket
}

func (s State) Evidence() (domain.Evidence, bool) {
	return s.evidence, s.hasEvidence
}

// WithDocket makes d the active docket. Evidence survives only when d is the
// docket already under discussion.
func (s State) WithDocket(d domain.Docket) State {
	next := State{docket: d, hasDocket: true}
	if s.hasEvidence && s.docket.ID == d.ID {
		next.evidence, next.hasEvidence = s.evidence, true
	}
	return next
}

// WithEvidence attaches e when it belongs to the active docket. The second
// result is false and s is returned unchanged otherwise.
func (s State) WithEvidence(e domain.Evidence) (State, bool) {
	if !s.hasDocket || s.docket.ID != e.DocketID {
		return s, false
	}
	s.evidence, s.hasEvidence = e, true
	return s, true
}

func (s State) WithoutEvidence() State {
	s.evidence, s.hasEvidence = domain.Evidence{}, false
	return s
}

// Delivered records a committed delivery on the active docket snapshot and
// drops the evidence that justified it.
func (s State) Delivered(at time.Time) State {
	s = s.WithoutEvidence()
	if s.hasDocket {
		s.docket.Status = domain.DocketDelivered
		s.docket.PODVerified = true
		s.docket.UpdatedAt = at
	}
	return s
}
