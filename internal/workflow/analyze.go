package workflow

import (
	"context"
	"strings"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/observability"
)

// AnalysisResult describes how a verification resolved.
type AnalysisResult struct {
	MessageID string
	Status    domain.MessageStatus
	Verdict   string
	// Accepted is true when the verdict carried the acceptance marker.
	Accepted bool
	// Applied is true when the accepted image became the session's evidence.
	Applied bool
	// Discarded is true when the session was closed before the verdict arrived.
	Discarded bool
	Failure   *Error
}

// Analysis is the handle for one in-flight verification.
type Analysis struct {
	MessageID string
	DocketID  string

	done   chan struct{}
	result AnalysisResult
}

// Done is closed once the loading message has been resolved or discarded.
func (a *Analysis) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the verification resolves or ctx ends.
func (a *Analysis) Wait(ctx context.Context) (AnalysisResult, error) {
	select {
	case <-a.done:
		return a.result, nil
	case <-ctx.Done():
		return AnalysisResult{}, ctx.Err()
	}
}

// UploadImage records an uploaded photo and, when a docket is active and no
// other verification is running, starts AnalyzePOD. The returned Analysis is
// nil when no verification was started.
func (e *Engine) UploadImage(ctx context.Context, sessionID string, img domain.Image) (Turn, *Analysis, error) {
	if len(img.Data) == 0 {
		return Turn{}, nil, newError(ErrorInvalidInput, "empty_image", nil)
	}
	if len(img.Data) > e.maxImageBytes {
		return Turn{}, nil, newError(ErrorInvalidInput, "image_too_large", nil)
	}
	ct, ok := domain.DetectImageType(img.Data)
	if !ok {
		return Turn{}, nil, newError(ErrorInvalidInput, "unsupported_image_type", nil)
	}
	img.ContentType = ct
	if img.ID == "" {
		img.ID = e.newID()
	}

	s, err := e.lockSession(sessionID)
	if err != nil {
		return Turn{}, nil, err
	}
	defer s.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With("session_id", s.id, "image_id", img.ID)
	start := len(s.messages)
	content := strings.TrimSpace(img.Name)
	if content == "" {
		content = msgDefaultUpload
	}
	userMsg := e.message(domain.RoleUser, content, domain.StatusNone)
	info := img.Info()
	userMsg.Image = &info
	s.appendMessage(userMsg)

	d, ok := s.state.ActiveDocket()
	if !ok {
		s.appendMessage(e.message(domain.RoleAssistant, msgSearchBeforeUpload, domain.StatusNone))
		failure := newError(ErrorPreconditionFailed, "no_active_docket", nil)
		log.Warn("upload rejected", "reason", failure.Reason)
		return Turn{Messages: s.messagesSince(start), Failure: failure, Snapshot: s.snapshot()}, nil, nil
	}
	if s.inflight != "" {
		s.appendMessage(e.message(domain.RoleAssistant, msgVerificationRunning, domain.StatusNone))
		failure := newError(ErrorPreconditionFailed, "verification_in_progress", nil)
		log.Warn("upload rejected", "reason", failure.Reason, "inflight_message_id", s.inflight)
		return Turn{Messages: s.messagesSince(start), Failure: failure, Snapshot: s.snapshot()}, nil, nil
	}

	loading := s.appendMessage(e.message(domain.RoleAssistant, analyzingMessage(d.ID), domain.StatusLoading))
	s.inflight = loading.ID
	a := &Analysis{MessageID: loading.ID, DocketID: d.ID, done: make(chan struct{})}

	log.Info("verification started", "docket_id", d.ID, "message_id", loading.ID)
	go e.analyzePOD(context.WithoutCancel(ctx), s, s.epoch, img, d.Ref(), a)

	return Turn{Messages: s.messagesSince(start), Snapshot: s.snapshot()}, a, nil
}

// analyzePOD runs the verifier outside the session lock and then resolves the
// loading message a was created for. Evidence is applied only if the session
// is still on the epoch and docket the image was submitted for.
func (e *Engine) analyzePOD(ctx context.Context, s *Session, epoch uint64, img domain.Image, ref domain.DocketRef, a *Analysis) {
	defer close(a.done)
	log := observability.LoggerFromContext(ctx).With("session_id", s.id, "docket_id", ref.ID, "message_id", a.MessageID)

	vctx, cancel := context.WithTimeout(ctx, e.verifyTimeout)
	verdict, err := e.verifier.AnalyzePOD(vctx, img, ref)
	cancel()
	verdict = strings.TrimSpace(verdict)

	s.mu.Lock()
	defer s.mu.Unlock()

	res := AnalysisResult{MessageID: a.MessageID}
	if s.closed {
		res.Discarded = true
		a.result = res
		log.Info("verification discarded, session closed")
		return
	}
	if s.inflight == a.MessageID {
		s.inflight = ""
	}

	if err != nil || verdict == "" {
		res.Status = domain.StatusError
		res.Failure = newError(ErrorVerifier, "verifier_unavailable", err)
		if err == nil {
			res.Failure.Reason = "verifier_empty_verdict"
		}
		s.resolve(a.MessageID, domain.StatusError, msgVerifierApology)
		a.result = res
		log.Warn("verification failed", "reason", res.Failure.Reason, "err", err)
		return
	}

	res.Status = domain.StatusSuccess
	res.Verdict = verdict
	res.Accepted = Accepted(verdict)
	s.resolve(a.MessageID, domain.StatusSuccess, verdict)

	if res.Accepted && s.epoch == epoch {
		next, ok := s.state.WithEvidence(domain.Evidence{
			Image:      img,
			DocketID:   ref.ID,
			Verdict:    verdict,
			AcceptedAt: e.now().UTC(),
		})
		if ok {
			s.state = next
			res.Applied = true
		}
	}
	a.result = res
	log.Info("verification resolved", "accepted", res.Accepted, "applied", res.Applied)
}
