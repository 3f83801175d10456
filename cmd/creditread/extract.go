package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditread/internal/api"
	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/infrastructure"
	"github.com/JaimeStill/creditread/internal/pipeline"
	"github.com/JaimeStill/creditread/internal/sources"
)

func newExtractCmd(opts *options) *cobra.Command {
	var (
		dealID  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Run the full pipeline on a PDF and print the resulting run",
		Long: `extract runs one document through extraction, classification, model
extraction and validation with an in-memory run store, then prints the
run as JSON. With --deal the completed record is pushed to the CRM when
a webhook is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			if err := sources.Accept(name, "", data); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			blobs, err := os.MkdirTemp("", "creditread-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(blobs)
			local(cfg, blobs)

			infra, err := infrastructure.NewWithLogger(cfg, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if err := infra.Start(); err != nil {
				return err
			}

			domain, err := api.NewDomain(cfg, api.NewRuntime(cfg, infra), api.Options{})
			if err != nil {
				return err
			}
			if err := domain.Start(infra.Lifecycle); err != nil {
				return err
			}
			infra.Lifecycle.WaitForStartup()
			defer infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration())

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			run, err := domain.Pipeline.Submit(ctx, pipeline.SubmitCommand{
				Document: data,
				Filename: name,
				DealID:   dealID,
			})
			if err != nil {
				return err
			}

			run, err = domain.Pipeline.Await(ctx, run.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), run)
		},
	}

	cmd.Flags().StringVar(&dealID, "deal", "", "CRM deal id to update when the run completes")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "maximum time to wait for the run")
	return cmd
}

// local confines a one-shot run to process memory and a scratch blob
// directory, with no inbox or event fan-out.
func local(cfg *config.Config, blobs string) {
	cfg.Store.Driver = config.StoreMemory
	cfg.Storage.Directory = blobs
	cfg.Storage.ConnectionString = ""
	cfg.Storage.AccountURL = ""
	cfg.Inbox.Directory = ""
	cfg.Events.RedisURL = ""
}
