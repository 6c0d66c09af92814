package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayis-rahman/synapse/internal/engine"
)

var ctxTopK int

var ctxGetCmd = &cobra.Command{
	Use:   "get <project_id> <query>",
	Short: "Fetch the merged, assembled context for a query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHandle()
		if err != nil {
			return err
		}
		defer engine.Shutdown(h) //nolint:errcheck

		res, err := h.CtxGet(cmd.Context(), args[0], args[1], ctxTopK)
		if err != nil {
			return err
		}
		fmt.Print(res.Context)
		for _, c := range res.Conflicts {
			fmt.Printf("conflict: %s = %q vs %s says %q\n", c.Key, c.SymbolicValue, c.OtherSource, c.OtherValue)
		}
		return nil
	},
}

var ctxCmd = &cobra.Command{
	Use:   "ctx",
	Short: "Query the merged memory view",
}

func init() {
	ctxGetCmd.Flags().IntVar(&ctxTopK, "top-k", 10, "maximum number of merged results")
	ctxCmd.AddCommand(ctxGetCmd)
	rootCmd.AddCommand(ctxCmd)
}
