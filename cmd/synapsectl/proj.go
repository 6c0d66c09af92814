package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayis-rahman/synapse/internal/engine"
)

var projCmd = &cobra.Command{
	Use:   "proj",
	Short: "Inspect registered projects",
}

var projListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every known project_id",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		ids, err := h.ProjList(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	projCmd.AddCommand(projListCmd)
	rootCmd.AddCommand(projCmd)
}
