package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayis-rahman/synapse/internal/engine"
	"github.com/kayis-rahman/synapse/internal/types"
)

var memCmd = &cobra.Command{
	Use:   "mem",
	Short: "Write to and read from the memory stores",
}

var (
	ingestSourceName string
	ingestSourceType string
)

var memIngestCmd = &cobra.Command{
	Use:   "ingest <project_id> <file>",
	Short: "Chunk, embed, and store a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[1], err)
		}

		sourceName := ingestSourceName
		if sourceName == "" {
			sourceName = args[1]
		}
		res, err := h.MemIngest(cmd.Context(), args[0], string(data), sourceName, ingestSourceType, nil)
		if err != nil {
			return err
		}
		fmt.Printf("doc_id=%s chunk_count=%d\n", res.DocID, res.ChunkCount)
		return nil
	},
}

var (
	factScope      string
	factCategory   string
	factConfidence float64
	factSource     string
)

var memFactAddCmd = &cobra.Command{
	Use:   "fact-add <project_id> <key> <value>",
	Short: "Upsert a symbolic fact",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		res, err := h.MemFactAdd(cmd.Context(), args[0], factScope, factCategory, args[1], args[2], factConfidence, types.Source(factSource))
		if err != nil {
			return err
		}
		fmt.Printf("fact_id=%s replaced=%t\n", res.FactID, res.Replaced)
		return nil
	},
}

var (
	epSituation string
	epAction    string
	epOutcome   string
	epLesson    string
	epLessonType string
	epConfidence float64
	epQuality    float64
	epSession    string
)

var memEpAddCmd = &cobra.Command{
	Use:   "ep-add <project_id>",
	Short: "Record an episode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		ep := &types.Episode{
			Situation:  epSituation,
			Action:     epAction,
			Outcome:    epOutcome,
			Lesson:     epLesson,
			LessonType: types.LessonType(epLessonType),
			Confidence: epConfidence,
			Quality:    epQuality,
		}
		res, err := h.MemEpAdd(cmd.Context(), args[0], epSession, ep)
		if err != nil {
			return err
		}
		fmt.Printf("episode_id=%s deduped=%t discarded_low_conf=%t\n", res.EpisodeID, res.Deduped, res.DiscardedLowConf)
		return nil
	},
}

var (
	searchMemoryType string
	searchTopK       int
)

var memSearchCmd = &cobra.Command{
	Use:   "search <project_id> <query>",
	Short: "Search one memory substrate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		results, err := h.MemSearch(cmd.Context(), args[0], args[1], engine.MemSearchOptions{
			MemoryType: searchMemoryType,
			TopK:       searchTopK,
		})
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("[%s authority=%.2f] %s\n", r.SourceType, r.Authority, r.Content)
		}
		return nil
	},
}

func init() {
	memIngestCmd.Flags().StringVar(&ingestSourceName, "source-name", "", "override the document's source name (defaults to the file path)")
	memIngestCmd.Flags().StringVar(&ingestSourceType, "source-type", "text", "document source type")

	memFactAddCmd.Flags().StringVar(&factScope, "scope", "project", "fact scope")
	memFactAddCmd.Flags().StringVar(&factCategory, "category", "fact", "fact category")
	memFactAddCmd.Flags().Float64Var(&factConfidence, "confidence", 1.0, "fact confidence in [0,1]")
	memFactAddCmd.Flags().StringVar(&factSource, "source", string(types.SourceUser), "fact source: user|agent|extractor|import")

	memEpAddCmd.Flags().StringVar(&epSituation, "situation", "", "episode situation")
	memEpAddCmd.Flags().StringVar(&epAction, "action", "", "episode action")
	memEpAddCmd.Flags().StringVar(&epOutcome, "outcome", "", "episode outcome")
	memEpAddCmd.Flags().StringVar(&epLesson, "lesson", "", "episode lesson")
	memEpAddCmd.Flags().StringVar(&epLessonType, "lesson-type", string(types.LessonProcedure), "pattern|antipattern|procedure|warning")
	memEpAddCmd.Flags().Float64Var(&epConfidence, "confidence", 0.7, "episode confidence in [0,1]")
	memEpAddCmd.Flags().Float64Var(&epQuality, "quality", 0.7, "episode quality in [0,1]")
	memEpAddCmd.Flags().StringVar(&epSession, "session", "", "session_id (meaningful under per_session dedup)")

	memSearchCmd.Flags().StringVar(&searchMemoryType, "type", "semantic", "symbolic|episodic|semantic")
	memSearchCmd.Flags().IntVar(&searchTopK, "top-k", 10, "maximum results")

	memCmd.AddCommand(memIngestCmd, memFactAddCmd, memEpAddCmd, memSearchCmd)
	rootCmd.AddCommand(memCmd)
}
