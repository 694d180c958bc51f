package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/observability"
)

// PODVerifier asks a vision model whether an uploaded photo is an acceptable
// proof of delivery for a docket. The verdict is returned as the model wrote it.
type PODVerifier struct {
	settings *Settings
	llm      LLMClient
}

func NewPODVerifier(settings *Settings, llm LLMClient) (*PODVerifier, error) {
	if settings == nil {
		return nil, errors.New("usecase: settings must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	return &PODVerifier{settings: settings, llm: llm}, nil
}

func (v *PODVerifier) AnalyzePOD(ctx context.Context, img domain.Image, ref domain.DocketRef) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("usecase: image is empty")
	}
	cfg, err := v.settings.ensure(ctx)
	if err != nil {
		return "", err
	}

	log := observability.LoggerFromContext(ctx).With("docket_id", ref.ID, "model", cfg.visionModel)
	raw, err := v.llm.Chat(ctx, cfg.visionModel, buildVerificationMessages(ref, img))
	if err != nil {
		logRateLimited(log, "vision model rate limited", err)
		return "", fmt.Errorf("usecase: analyze pod: %w", err)
	}
	verdict := strings.TrimSpace(raw)
	log.Info("pod analysed", "verdict_len", len(verdict))
	return verdict, nil
}
