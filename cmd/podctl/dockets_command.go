package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pod-assistant/internal/app"
	"pod-assistant/internal/config"
	"pod-assistant/internal/domain"
)

func newDocketsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dockets",
		Short: "List dockets in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg.SeedDockets = false
			awsCfg, err := ctx.awsConfig(cmd.Context(), cfg.StoreBackend == config.BackendDynamoDB)
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenStore(cmd.Context(), cfg, awsCfg)
			if err != nil {
				return err
			}
			defer closeStore()

			dockets, err := store.ListDockets(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(dockets) == 0 {
				fmt.Fprintln(out, "No dockets found. Run `podctl seed` to load the samples.")
				return nil
			}
			fmt.Fprintln(out, renderDockets(dockets))
			return nil
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample dockets that are not present yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg.SeedDockets = false
			awsCfg, err := ctx.awsConfig(cmd.Context(), cfg.StoreBackend == config.BackendDynamoDB)
			if err != nil {
				return err
			}
			store, closeStore, err := app.OpenStore(cmd.Context(), cfg, awsCfg)
			if err != nil {
				return err
			}
			defer closeStore()

			seed := domain.SeedDockets()
			n, err := store.SeedDockets(cmd.Context(), seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d sample dockets (%s).\n", n, len(seed), cfg.StoreBackend)
			return nil
		},
	}
}

func renderDockets(dockets []domain.Docket) string {
	rows := make([][]string, 0, len(dockets))
	for _, d := range dockets {
		verified := "no"
		if d.PODVerified {
			verified = "yes"
		}
		updated := "-"
		if !d.UpdatedAt.IsZero() {
			updated = d.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{d.ID, d.CustomerName, d.Address, string(d.Status), verified, updated})
	}
	return strings.TrimRight(renderTable(
		[]string{"Docket", "Customer", "Address", "Status", "POD Verified", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignCenter, alignLeft},
	), "\n")
}
