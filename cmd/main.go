package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"pod-assistant/handler"
	"pod-assistant/internal/app"
	"pod-assistant/internal/config"
	"pod-assistant/internal/observability"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(observability.Init(os.Stdout, cfg.LogLevel))

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Store, adapters and engine ----
	a, err := app.Build(ctx, cfg, awsCfg)
	if err != nil {
		slog.Error("failed to build application", "backend", cfg.StoreBackend, "err", err)
		os.Exit(1)
	}
	defer a.Close()

	// ---- Handler ----
	h, err := handler.NewHandler(a.Engine)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
