package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stephnangue/idstore/cmd/helpers"
	"github.com/stephnangue/idstore/cmd/operator"
)

var idstoreCmd = &cobra.Command{
	Use:   "idstore",
	Short: "Idstore manages bearer tokens and identifier bindings",
	Long: `Idstore issues and revokes short-lived bearer tokens and maintains
versioned bindings between human-chosen identifiers (usernames, lookup
names, emails, phone numbers) and principals, backed by DynamoDB.`,
}

func Execute() {
	if err := idstoreCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	idstoreCmd.PersistentFlags().StringVar(&helpers.ConfigFile, "config", "", "Path to the HCL configuration file")

	idstoreCmd.AddCommand(operator.OperatorCmd)
}
