package operator

import (
	"github.com/spf13/cobra"
)

var OperatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Perform administrative operations on the identity store",
	Long: `The operator command provisions and maintains the identity store.

Available subcommands:
  - init:     create all tables and wait for them to become active
  - teardown: delete all tables
  - sweep:    delete a token that is past its expiry

Usage:
  $ idstore operator <subcommand> [options]
`,
}

func init() {
	OperatorCmd.AddCommand(initCmd)
	OperatorCmd.AddCommand(teardownCmd)
	OperatorCmd.AddCommand(sweepCmd)
}
