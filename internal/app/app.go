// Package app wires configuration, AWS clients, the docket store and the
// workflow engine for the Lambda entrypoint and podctl.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"pod-assistant/internal/config"
	"pod-assistant/internal/domain"
	"pod-assistant/internal/integrations/openai"
	"pod-assistant/internal/integrations/paramstore"
	"pod-assistant/internal/observability"
	"pod-assistant/internal/repository"
	"pod-assistant/internal/repository/sqlite"
	"pod-assistant/internal/usecase"
	"pod-assistant/internal/workflow"
)

// DocketStore is implemented by both the DynamoDB and the SQLite stores.
type DocketStore interface {
	workflow.DocketStore
	SeedDockets(ctx context.Context, dockets []domain.Docket) (int, error)
	ListDockets(ctx context.Context) ([]domain.Docket, error)
}

type App struct {
	Config config.Config
	Store  DocketStore
	Engine *workflow.Engine

	closeStore func() error
}

// OpenStore connects to the configured docket store and seeds it when
// cfg.SeedDockets is set. The returned func releases the store.
func OpenStore(ctx context.Context, cfg config.Config, awsCfg aws.Config) (DocketStore, func() error, error) {
	var (
		store   DocketStore
		closeFn = func() error { return nil }
	)
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		c, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.DocketTable)
		if err != nil {
			return nil, nil, err
		}
		store = c
	case config.BackendSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	default:
		return nil, nil, fmt.Errorf("app: unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.SeedDockets {
		n, err := store.SeedDockets(ctx, domain.SeedDockets())
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("app: seed dockets: %w", err)
		}
		observability.LoggerFromContext(ctx).Info("dockets seeded", "backend", cfg.StoreBackend, "inserted", n)
	}
	return store, closeFn, nil
}

// Build assembles the engine and its adapters. Nothing here calls OpenAI or
// Parameter Store; those are reached lazily on the first request.
func Build(ctx context.Context, cfg config.Config, awsCfg aws.Config) (*App, error) {
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}

	store, closeStore, err := OpenStore(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	engine, err := buildEngine(cfg, store, params)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	return &App{Config: cfg, Store: store, Engine: engine, closeStore: closeStore}, nil
}

func buildEngine(cfg config.Config, store workflow.DocketStore, params *paramstore.Client) (*workflow.Engine, error) {
	llm, err := openai.NewClient(
		params,
		cfg.ParamPrefix,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.VerifyTimeout()}),
	)
	if err != nil {
		return nil, err
	}
	settings, err := usecase.NewSettings(params, cfg.ParamPrefix)
	if err != nil {
		return nil, err
	}
	verifier, err := usecase.NewPODVerifier(settings, llm)
	if err != nil {
		return nil, err
	}
	assistant, err := usecase.NewAssistant(settings, llm)
	if err != nil {
		return nil, err
	}
	return workflow.NewEngine(
		store,
		verifier,
		assistant,
		workflow.NewRegistry(workflow.WithIdleTimeout(cfg.SessionIdleTimeout())),
		workflow.WithSampleDocketIDs(domain.SeedDocketIDs()),
		workflow.WithLimits(cfg.MaxMessageLength, cfg.MaxImageBytes),
		workflow.WithVerifyTimeout(cfg.VerifyTimeout()),
	)
}

func (a *App) Close() error {
	if a == nil || a.closeStore == nil {
		return nil
	}
	err := a.closeStore()
	a.closeStore = nil
	if err != nil {
		return errors.Join(errors.New("app: close store"), err)
	}
	return nil
}
