package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pod-assistant/internal/domain"
	"pod-assistant/internal/workflow"
)

type memStore struct {
	dockets map[string]domain.Docket
}

func newMemStore() *memStore {
	m := &memStore{dockets: make(map[string]domain.Docket)}
	for _, d := range domain.SeedDockets() {
		m.dockets[d.ID] = d
	}
	return m
}

func (m *memStore) GetDocket(_ context.Context, id string) (domain.Docket, error) {
	d, ok := m.dockets[id]
	if !ok {
		return domain.Docket{}, domain.ErrDocketNotFound
	}
	return d, nil
}

func (m *memStore) UpdateDocketStatus(_ context.Context, id string, status domain.DocketStatus, verified bool) error {
	d, ok := m.dockets[id]
	if !ok {
		return domain.ErrDocketNotFound
	}
	d.Status = status
	d.PODVerified = verified
	m.dockets[id] = d
	return nil
}

type stubVerifier struct{ verdict string }

func (s stubVerifier) AnalyzePOD(context.Context, domain.Image, domain.DocketRef) (string, error) {
	return s.verdict, nil
}

type stubAssistant struct{}

func (stubAssistant) Respond(context.Context, string) (string, error) {
	return "Hi! Type a docket number to begin.", nil
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

func newChatEngine(t *testing.T, verdict string) *workflow.Engine {
	t.Helper()
	e, err := workflow.NewEngine(newMemStore(), stubVerifier{verdict: verdict}, stubAssistant{}, workflow.NewRegistry())
	require.NoError(t, err)
	return e
}

func TestRunChat_DeliveryScript(t *testing.T) {
	photo := filepath.Join(t.TempDir(), "pod.png")
	require.NoError(t, os.WriteFile(photo, pngBytes, 0o600))

	script := strings.Join([]string{
		"hello",
		"DKT-1001",
		"/upload " + photo,
		"update",
		"/status",
		"/reset",
		"/quit",
		"DKT-1002",
	}, "\n")

	var out bytes.Buffer
	err := runChat(context.Background(), newChatEngine(t, "Signed and stamped. POD is good."), strings.NewReader(script), &out, false)
	require.NoError(t, err)

	got := out.String()
	require.Contains(t, got, "assistant: Hi! Type a docket number to begin.")
	require.Contains(t, got, "Found docket DKT-1001 for John Doe")
	require.Contains(t, got, "assistant (working): Analyzing proof of delivery for DKT-1001...")
	require.Contains(t, got, "assistant: Signed and stamped. POD is good.")
	require.Contains(t, got, "proof accepted for DKT-1001")
	require.Contains(t, got, "Docket DKT-1001 has been updated to Delivered")
	require.Contains(t, got, "phase=docket_active")
	require.Contains(t, got, "Conversation reset.")
	require.NotContains(t, got, "DKT-1002", "input after /quit must not be processed")
	require.NotContains(t, got, "> ")
}

func TestRunChat_InvalidInputDoesNotEndSession(t *testing.T) {
	notImage := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("just some notes"), 0o600))

	script := strings.Join([]string{
		"DKT-1003",
		"/upload " + notImage,
		"/upload",
		"/upload /does/not/exist.png",
		"/status",
	}, "\n")

	var out bytes.Buffer
	err := runChat(context.Background(), newChatEngine(t, "POD is good"), strings.NewReader(script), &out, true)
	require.NoError(t, err)

	got := out.String()
	require.Contains(t, got, "! unsupported_image_type")
	require.Contains(t, got, "! usage: /upload <path>")
	require.Contains(t, got, "exist.png")
	require.Contains(t, got, "DKT-1003")
	require.Contains(t, got, "> ")
	require.Contains(t, got, "Commands:")
}

func TestRunChat_UploadWithoutDocket(t *testing.T) {
	photo := filepath.Join(t.TempDir(), "pod.png")
	require.NoError(t, os.WriteFile(photo, pngBytes, 0o600))

	var out bytes.Buffer
	err := runChat(context.Background(), newChatEngine(t, "POD is good"), strings.NewReader("/upload "+photo+"\n/status\n"), &out, false)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Please search for a docket before uploading")
	require.Contains(t, out.String(), "No active docket.")
}

func TestRenderDockets(t *testing.T) {
	got := renderDockets([]domain.Docket{
		{ID: "DKT-1001", CustomerName: "John Doe", Address: "123 Maple St, Springfield", Status: domain.DocketDelivered, PODVerified: true, UpdatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)},
		{ID: "DKT-1002", CustomerName: "Jane Smith", Address: "456 Oak Ave, Metropolis", Status: domain.DocketPending},
	})
	require.Contains(t, got, "Docket")
	require.Contains(t, got, "DKT-1001")
	require.Contains(t, got, "2026-10-01T12:00:00Z")
	require.Contains(t, got, "yes")
	require.Contains(t, got, "Jane Smith")
	require.Contains(t, got, "╭")
}

func TestRenderTable_NoHeaders(t *testing.T) {
	require.Empty(t, renderTable(nil, [][]string{{"a"}}, nil))
}

func setSQLiteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POD_CONFIG_FILE", "")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "dockets.db"))
	t.Setenv("PARAM_PREFIX", "/pod-assistant")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestSeedAndDocketsCommands(t *testing.T) {
	setSQLiteEnv(t)

	require.Contains(t, execute(t, "--backend", "sqlite", "dockets"), "No dockets found")
	require.Contains(t, execute(t, "--backend", "sqlite", "seed"), "Seeded 3 of 3 sample dockets (sqlite).")
	require.Contains(t, execute(t, "--backend", "sqlite", "seed"), "Seeded 0 of 3")

	listing := execute(t, "--backend", "sqlite", "dockets")
	for _, id := range domain.SeedDocketIDs() {
		require.Contains(t, listing, id)
	}
	require.Contains(t, listing, "Acme Corp")
}

func TestConfigFlagOverridesEnv(t *testing.T) {
	setSQLiteEnv(t)
	path := filepath.Join(t.TempDir(), "podctl.toml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend = \"sqlite\"\n"), 0o600))

	require.Contains(t, execute(t, "--config", path, "seed"), "(sqlite)")
}

func TestInvalidConfigFails(t *testing.T) {
	setSQLiteEnv(t)
	t.Setenv("PARAM_PREFIX", "")
	t.Setenv("STORE_BACKEND", "sqlite")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"dockets"})
	err := cmd.Execute()
	require.ErrorContains(t, err, "PARAM_PREFIX")
}
