package main

import (
	"github.com/spf13/cobra"

	"github.com/kayis-rahman/synapse/internal/config"
	"github.com/kayis-rahman/synapse/internal/engine"
	"github.com/kayis-rahman/synapse/internal/extractor"
)

var (
	dataRoot   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "synapsectl",
	Short: "Operate a local tri-memory retrieval server",
	Long: `synapsectl drives the symbolic, episodic, and semantic memory stores
directly, without a running server process: every invocation opens a fresh
engine.Handle over --data-root and tears it down on exit.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "./synapse-data", "root directory for all project state")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML configuration document")
}

// openHandle loads config and constructs an engine.Handle. The embedder is
// a placeholder character-code-based stand-in (see embed.go): no embedding model
// ships in this repo, since the core never loads a model itself — a real
// deployment injects its own Embedder here.
func openHandle() (*engine.Handle, error) {
	cfg, err := config.Load(configPath, dataRoot)
	if err != nil {
		return nil, err
	}

	var completer extractor.Completer
	if cfg.ExtractionMode == string(extractor.ModeModel) {
		mc, err := extractor.NewModelCompleter("")
		if err != nil {
			return nil, err
		}
		completer = mc
	}

	return engine.Init(cfg, placeholderEmbedder{dim: cfg.EmbeddingDim}, completer)
}
