package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"pod-assistant/internal/observability"
)

// RefusalMessage is returned instead of a model reply when moderation flags
// the utterance.
const RefusalMessage = "I can't help with that. I can look up dockets and check proof-of-delivery photos."

// Assistant answers utterances the workflow does not recognise as a docket
// lookup or an update request.
type Assistant struct {
	settings *Settings
	llm      LLMClient
}

func NewAssistant(settings *Settings, llm LLMClient) (*Assistant, error) {
	if settings == nil {
		return nil, errors.New("usecase: settings must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	return &Assistant{settings: settings, llm: llm}, nil
}

func (a *Assistant) Respond(ctx context.Context, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return "", errors.New("usecase: utterance is empty")
	}
	cfg, err := a.settings.ensure(ctx)
	if err != nil {
		return "", err
	}
	log := observability.LoggerFromContext(ctx).With("model", cfg.chatModel)

	flagged, err := a.llm.Moderate(ctx, utterance)
	if err != nil {
		logRateLimited(log, "moderation rate limited", err)
		return "", fmt.Errorf("usecase: moderate: %w", err)
	}
	if flagged {
		log.Info("utterance flagged by moderation")
		return RefusalMessage, nil
	}

	raw, err := a.llm.Chat(ctx, cfg.chatModel, buildAssistantMessages(cfg.assistantPrompt, utterance))
	if err != nil {
		logRateLimited(log, "chat model rate limited", err)
		return "", fmt.Errorf("usecase: respond: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

func logRateLimited(log *slog.Logger, msg string, err error) {
	if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
		log.Warn(msg, "err", err)
	}
}
