package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/integrations/openai"
)

type mockParams struct {
	vals  map[string]string
	err   error
	calls int
}

func (m *mockParams) GetParameters(_ context.Context, names ...string) (map[string]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := m.vals[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

type mockLLM struct {
	answer      string
	chatErr     error
	flagged     bool
	moderateErr error

	chatCalls     int
	moderateCalls int
	model         string
	captured      []domain.ChatMessage
}

func (m *mockLLM) Chat(_ context.Context, model string, msgs []domain.ChatMessage) (string, error) {
	m.chatCalls++
	m.model = model
	m.captured = msgs
	return m.answer, m.chatErr
}

func (m *mockLLM) Moderate(_ context.Context, _ string) (bool, error) {
	m.moderateCalls++
	return m.flagged, m.moderateErr
}

func defaultParams() *mockParams {
	return &mockParams{
		vals: map[string]string{
			"/prefix/config/chat_model":   "gpt-4o-mini",
			"/prefix/config/vision_model": "gpt-4o",
			"/prefix/assistant_prompt":    "Be friendly.",
		},
	}
}

func newTestSettings(t *testing.T, p ParamGetter) *Settings {
	t.Helper()
	s, err := NewSettings(p, "/prefix/")
	require.NoError(t, err)
	return s
}

func podImage() domain.Image {
	return domain.Image{ID: "img-1", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}
}

func docketRef() domain.DocketRef {
	return domain.DocketRef{ID: "DKT-1001", CustomerName: "John Doe", Address: "123 Maple St, Springfield"}
}

func TestNewSettings_ValidatesDependencies(t *testing.T) {
	_, err := NewSettings(nil, "/prefix")
	require.Error(t, err)

	_, err = NewSettings(defaultParams(), " / ")
	require.Error(t, err)
}

func TestSettings_CachedAfterFirstLoad(t *testing.T) {
	p := defaultParams()
	s := newTestSettings(t, p)

	v, err := s.ensure(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", v.chatModel)
	require.Equal(t, "gpt-4o", v.visionModel)
	require.Equal(t, "Be friendly.", v.assistantPrompt)

	_, err = s.ensure(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, p.calls)
}

func TestSettings_RetriesAfterFailure(t *testing.T) {
	p := defaultParams()
	p.err = errors.New("ssm unavailable")
	s := newTestSettings(t, p)

	_, err := s.ensure(context.Background())
	require.ErrorContains(t, err, "ssm unavailable")

	p.err = nil
	_, err = s.ensure(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, p.calls)
}

func TestSettings_MissingModel(t *testing.T) {
	p := defaultParams()
	delete(p.vals, "/prefix/config/vision_model")
	_, err := newTestSettings(t, p).ensure(context.Background())
	require.ErrorContains(t, err, "vision_model")
}

func TestSettings_PromptOptional(t *testing.T) {
	p := defaultParams()
	delete(p.vals, "/prefix/assistant_prompt")
	v, err := newTestSettings(t, p).ensure(context.Background())
	require.NoError(t, err)
	require.Empty(t, v.assistantPrompt)
}

func TestNewPODVerifier_ValidatesDependencies(t *testing.T) {
	_, err := NewPODVerifier(nil, &mockLLM{})
	require.Error(t, err)
	_, err = NewPODVerifier(newTestSettings(t, defaultParams()), nil)
	require.Error(t, err)
}

func TestAnalyzePOD_HappyPath(t *testing.T) {
	llm := &mockLLM{answer: "  1) yes\nVerdict: POD is good\n"}
	v, err := NewPODVerifier(newTestSettings(t, defaultParams()), llm)
	require.NoError(t, err)

	verdict, err := v.AnalyzePOD(context.Background(), podImage(), docketRef())
	require.NoError(t, err)
	require.Equal(t, "1) yes\nVerdict: POD is good", verdict)
	require.Equal(t, "gpt-4o", llm.model)
	require.Zero(t, llm.moderateCalls)

	require.Len(t, llm.captured, 2)
	user := llm.captured[1]
	require.Equal(t, "user", user.Role)
	require.Contains(t, user.Content, "DKT-1001")
	require.Contains(t, user.Content, "John Doe")
	require.Contains(t, user.Content, "123 Maple St, Springfield")
	require.Len(t, user.Images, 1)
	require.Equal(t, "img-1", user.Images[0].ID)
}

func TestAnalyzePOD_Errors(t *testing.T) {
	v, err := NewPODVerifier(newTestSettings(t, defaultParams()), &mockLLM{})
	require.NoError(t, err)
	_, err = v.AnalyzePOD(context.Background(), domain.Image{}, docketRef())
	require.ErrorContains(t, err, "empty")

	llm := &mockLLM{chatErr: &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}}
	v, err = NewPODVerifier(newTestSettings(t, defaultParams()), llm)
	require.NoError(t, err)
	_, err = v.AnalyzePOD(context.Background(), podImage(), docketRef())
	var statusErr *openai.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)

	v, err = NewPODVerifier(newTestSettings(t, &mockParams{err: errors.New("ssm down")}), &mockLLM{})
	require.NoError(t, err)
	_, err = v.AnalyzePOD(context.Background(), podImage(), docketRef())
	require.ErrorContains(t, err, "ssm down")
}

func TestNewAssistant_ValidatesDependencies(t *testing.T) {
	_, err := NewAssistant(nil, &mockLLM{})
	require.Error(t, err)
	_, err = NewAssistant(newTestSettings(t, defaultParams()), nil)
	require.Error(t, err)
}

func TestRespond_HappyPath(t *testing.T) {
	llm := &mockLLM{answer: " Hello! Type a docket id to start. "}
	a, err := NewAssistant(newTestSettings(t, defaultParams()), llm)
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "  hello there ")
	require.NoError(t, err)
	require.Equal(t, "Hello! Type a docket id to start.", reply)
	require.Equal(t, "gpt-4o-mini", llm.model)
	require.Equal(t, 1, llm.moderateCalls)

	require.Len(t, llm.captured, 3)
	require.Equal(t, "system", llm.captured[0].Role)
	require.Equal(t, "Be friendly.", llm.captured[1].Content)
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "hello there"}, llm.captured[2])
}

func TestRespond_Flagged(t *testing.T) {
	llm := &mockLLM{flagged: true}
	a, err := NewAssistant(newTestSettings(t, defaultParams()), llm)
	require.NoError(t, err)

	reply, err := a.Respond(context.Background(), "something unsafe")
	require.NoError(t, err)
	require.Equal(t, RefusalMessage, reply)
	require.Zero(t, llm.chatCalls)
}

func TestRespond_Errors(t *testing.T) {
	a, err := NewAssistant(newTestSettings(t, defaultParams()), &mockLLM{})
	require.NoError(t, err)
	_, err = a.Respond(context.Background(), "   ")
	require.ErrorContains(t, err, "empty")

	a, err = NewAssistant(newTestSettings(t, defaultParams()), &mockLLM{moderateErr: &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}})
	require.NoError(t, err)
	_, err = a.Respond(context.Background(), "hi")
	require.ErrorContains(t, err, "moderate")

	llm := &mockLLM{chatErr: &openai.HTTPStatusError{StatusCode: http.StatusInternalServerError}}
	a, err = NewAssistant(newTestSettings(t, defaultParams()), llm)
	require.NoError(t, err)
	_, err = a.Respond(context.Background(), "hi")
	require.ErrorContains(t, err, "500")
}

func TestBuildAssistantMessages_SkipsBlankPrompt(t *testing.T) {
	msgs := buildAssistantMessages("   ", "hi")
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[1].Role)
}

func TestBuildVerificationPolicy_NamesAcceptanceMarker(t *testing.T) {
	require.Contains(t, strings.ToLower(buildVerificationPolicy()), "pod is good")
}

func TestBuildDocketReference_NormalizesWhitespace(t *testing.T) {
	ref := domain.DocketRef{ID: "DKT-1", CustomerName: " Jane \n Smith ", Address: "456  Oak Ave"}
	got := buildDocketReference(ref)
	require.Contains(t, got, "Customer: Jane Smith")
	require.Contains(t, got, "Address: 456 Oak Ave")
}
