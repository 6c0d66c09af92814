// Command synapsectl is a thin operator CLI over the tri-memory engine:
// one cobra.Command var per subcommand, wired together through init() and
// executed from main.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
