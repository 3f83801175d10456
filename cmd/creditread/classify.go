package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/creditread/internal/classify"
	"github.com/JaimeStill/creditread/internal/config"
	"github.com/JaimeStill/creditread/internal/extract"
	"github.com/JaimeStill/creditread/internal/extract/mupdf"
	"github.com/JaimeStill/creditread/internal/formats"
)

type classification struct {
	File       string           `json:"file"`
	Engine     string           `json:"engine"`
	Pages      int              `json:"pages"`
	Tables     int              `json:"tables"`
	Format     formats.Format   `json:"format"`
	Bureau     string           `json:"bureau"`
	Confidence float64          `json:"confidence"`
	Scores     []classify.Score `json:"scores"`
}

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Detect the bureau layout of a PDF without calling the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			overrides, err := formats.LoadOverrides(cfg.Catalog.Overrides)
			if err != nil {
				return err
			}
			catalog, err := formats.NewCatalog(overrides)
			if err != nil {
				return err
			}

			var engine extract.TextEngine = extract.StreamEngine{}
			if cfg.Extractor.Engine == config.EngineMuPDF {
				engine = mupdf.New()
			}

			content, err := extract.New(engine, opts.logger(cmd.ErrOrStderr())).Extract(cmd.Context(), data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			c := classify.New(catalog, cfg.Classifier)
			format, confidence := c.Classify(content)

			return printJSON(cmd.OutOrStdout(), classification{
				File:       args[0],
				Engine:     content.Engine,
				Pages:      content.PageCount,
				Tables:     len(content.Tables),
				Format:     format,
				Bureau:     format.Bureau(),
				Confidence: confidence,
				Scores:     c.Scores(content.Text(cfg.Classifier.Pages)),
			})
		},
	}
}
