package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pod-assistant/internal/domain"
)

const (
	chatModelParam       = "/config/chat_model"
	visionModelParam     = "/config/vision_model"
	assistantPromptParam = "/assistant_prompt"
)

type ParamGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type modelSettings struct {
	chatModel       string
	visionModel     string
	assistantPrompt string
}

// Settings lazily loads model names and the assistant prompt from Parameter
// Store and caches them for the lifetime of the process. A failed load is
// retried on the next call.
type Settings struct {
	params      ParamGetter
	paramPrefix string

	cacheMu     sync.RWMutex
	cacheLoaded bool
	values      modelSettings
}

func NewSettings(p ParamGetter, paramPrefix string) (*Settings, error) {
	if p == nil {
		return nil, errors.New("usecase: param getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return &Settings{params: p, paramPrefix: paramPrefix}, nil
}

func (s *Settings) ensure(ctx context.Context) (modelSettings, error) {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		v := s.values
		s.cacheMu.RUnlock()
		return v, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.values, nil
	}

	v, err := s.loadSSMParams(ctx)
	if err != nil {
		return modelSettings{}, err
	}
	s.values = v
	s.cacheLoaded = true
	return v, nil
}

func (s *Settings) loadSSMParams(ctx context.Context) (modelSettings, error) {
	chatName := s.paramPrefix + chatModelParam
	visionName := s.paramPrefix + visionModelParam
	promptName := s.paramPrefix + assistantPromptParam

	vals, err := s.params.GetParameters(ctx, chatName, visionName, promptName)
	if err != nil {
		return modelSettings{}, fmt.Errorf("usecase: load settings: %w", err)
	}
	out := modelSettings{
		chatModel:       strings.TrimSpace(vals[chatName]),
		visionModel:     strings.TrimSpace(vals[visionName]),
		assistantPrompt: strings.TrimSpace(vals[promptName]),
	}
	if out.chatModel == "" {
		return modelSettings{}, fmt.Errorf("usecase: load settings: %s is empty", chatName)
	}
	if out.visionModel == "" {
		return modelSettings{}, fmt.Errorf("usecase: load settings: %s is empty", visionName)
	}
	return out, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
