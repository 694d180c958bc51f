package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"pod-assistant/internal/config"
	"pod-assistant/internal/domain"
	"pod-assistant/internal/workflow"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StoreBackend = config.BackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "dockets.db")
	cfg.ParamPrefix = "/pod-assistant"
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild_SQLiteSeedsAndServesLookups(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, sqliteConfig(t), aws.Config{Region: "us-east-1"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	dockets, err := a.Store.ListDockets(ctx)
	require.NoError(t, err)
	require.Len(t, dockets, 3)

	snap := a.Engine.OpenSession(ctx)
	turn, err := a.Engine.SubmitText(ctx, snap.SessionID, "DKT-1002")
	require.NoError(t, err)
	require.Nil(t, turn.Failure)
	require.Equal(t, workflow.PhaseDocketActive, turn.Snapshot.Phase)
	require.Equal(t, "Jane Smith", turn.Snapshot.ActiveDocket.CustomerName)
}

func TestOpenStore_NoSeed(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	cfg.SeedDockets = false

	store, closeFn, err := OpenStore(ctx, cfg, aws.Config{})
	require.NoError(t, err)
	defer closeFn()

	_, err = store.GetDocket(ctx, "DKT-1001")
	require.ErrorIs(t, err, domain.ErrDocketNotFound)
}

func TestOpenStore_DynamoDBNeedsNoNetworkToConstruct(t *testing.T) {
	cfg := config.Default()
	cfg.DocketTable = "dockets"
	cfg.SeedDockets = false

	store, closeFn, err := OpenStore(context.Background(), cfg, aws.Config{Region: "us-east-1"})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, closeFn())
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.StoreBackend = "postgres"
	_, _, err := OpenStore(context.Background(), cfg, aws.Config{})
	require.ErrorContains(t, err, "postgres")
}

func TestClose_Idempotent(t *testing.T) {
	a, err := Build(context.Background(), sqliteConfig(t), aws.Config{Region: "us-east-1"})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.NoError(t, (*App)(nil).Close())
}
