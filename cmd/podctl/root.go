package main

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"pod-assistant/internal/config"
	"pod-assistant/internal/observability"
)

type commandContext struct {
	configFlag  *string
	backendFlag *string
	lookupEnv   func(string) (string, bool)

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(configFlag, backendFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		backendFlag: backendFlag,
		lookupEnv:   os.LookupEnv,
	}
}

// lookup overlays command-line flags on the environment.
func (c *commandContext) lookup(key string) (string, bool) {
	switch key {
	case config.FileEnv:
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			return *c.configFlag, true
		}
	case "STORE_BACKEND":
		if c.backendFlag != nil && strings.TrimSpace(*c.backendFlag) != "" {
			return *c.backendFlag, true
		}
	}
	return c.lookupEnv(key)
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(c.lookup)
		if c.configErr == nil {
			observability.Init(os.Stderr, c.config.LogLevel)
		}
	})
	return c.config, c.configErr
}

// awsConfig loads the default AWS configuration. Local SQLite runs that never
// reach AWS skip it with required=false.
func (c *commandContext) awsConfig(ctx context.Context, required bool) (aws.Config, error) {
	if !required {
		return aws.Config{}, nil
	}
	return awsconfig.LoadDefaultConfig(ctx)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var backendFlag string

	ctx := newCommandContext(&configFlag, &backendFlag)

	rootCmd := &cobra.Command{
		Use:           "podctl",
		Short:         "Docket lookup and proof-of-delivery assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (overrides "+config.FileEnv+")")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Docket store backend: dynamodb or sqlite")

	rootCmd.AddCommand(newChatCommand(ctx))
	rootCmd.AddCommand(newDocketsCommand(ctx))
	rootCmd.AddCommand(newSeedCommand(ctx))

	return rootCmd
}
