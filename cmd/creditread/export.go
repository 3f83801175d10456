package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditread/internal/api"
	"github.com/JaimeStill/creditread/internal/export"
	"github.com/JaimeStill/creditread/internal/infrastructure"
	"github.com/JaimeStill/creditread/internal/runs"
)

func newExportCmd(opts *options) *cobra.Command {
	var (
		out    string
		state  string
		format string
		deal   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the runs in the configured store to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Store.UsesDatabase() {
				return fmt.Errorf("export needs a persistent store, configured driver is %q", cfg.Store.Driver)
			}

			logger := opts.logger(cmd.ErrOrStderr())
			infra, err := infrastructure.NewWithLogger(cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Database.Connection().Close()

			store, err := api.NewStore(cfg, api.NewRuntime(cfg, infra))
			if err != nil {
				return err
			}

			filters := runs.FiltersFromQuery(url.Values{
				"state":   {state},
				"format":  {format},
				"deal_id": {deal},
			})

			data, err := export.New(store, cfg.API.Pagination.MaxPageSize, logger).Runs(cmd.Context(), filters)
			if err != nil {
				return err
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "runs.xlsx", "output workbook path")
	cmd.Flags().StringVar(&state, "state", "", "only runs in this state")
	cmd.Flags().StringVar(&format, "format", "", "only runs of this bureau format")
	cmd.Flags().StringVar(&deal, "deal", "", "only runs for this CRM deal id")
	return cmd
}
