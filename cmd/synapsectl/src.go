package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayis-rahman/synapse/internal/engine"
)

var srcListCmd = &cobra.Command{
	Use:   "list <project_id>",
	Short: "List documents ingested into a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		rows, err := h.SrcList(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, r := range rows {
			fmt.Printf("%s\t%s\t%d chunks\tingested_at=%d\n", r.DocID, r.Source, r.ChunkCount, r.IngestedAt)
		}
		return nil
	},
}

var srcCmd = &cobra.Command{
	Use:   "src",
	Short: "Inspect a project's ingested sources",
}

func init() {
	srcCmd.AddCommand(srcListCmd)
	rootCmd.AddCommand(srcCmd)
}
