package config

import (
	"fmt"
	"os"
)

const EnvExtractorEngine = "CREDITREAD_EXTRACTOR_ENGINE"

// Text engines accepted by ExtractorConfig.
const (
	EnginePDFCPU = "pdfcpu"
	EngineMuPDF  = "mupdf"
)

// ExtractorConfig selects the page text engine.
type ExtractorConfig struct {
	Engine string `toml:"engine"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ExtractorConfig) Finalize() error {
	if c.Engine == "" {
		c.Engine = EnginePDFCPU
	}
	if v := os.Getenv(EnvExtractorEngine); v != "" {
		c.Engine = v
	}

	switch c.Engine {
	case EnginePDFCPU, EngineMuPDF:
		return nil
	default:
		return fmt.Errorf("unsupported engine: %q", c.Engine)
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *ExtractorConfig) Merge(overlay *ExtractorConfig) {
	if overlay.Engine != "" {
		c.Engine = overlay.Engine
	}
}
