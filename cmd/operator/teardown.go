package operator

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stephnangue/idstore/cmd/helpers"
	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
	"github.com/stephnangue/idstore/repository/schema"
)

var teardownCmd = &cobra.Command{
	Use:           "teardown",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Delete the identity store tables",
	Long: `
Delete every table the identity store uses, waiting for each deletion to
complete. Tables that do not exist are skipped. All stored data is lost.

Usage:
  $ idstore operator teardown --config=idstore.hcl
`,
	RunE: runTeardown,
}

func runTeardown(cmd *cobra.Command, args []string) error {
	cfg, err := helpers.Load()
	if err != nil {
		return err
	}
	logger := helpers.Logger(cfg)
	defer logger.Close()

	client, err := helpers.StoreClient(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, table := range schema.AllTables() {
		err := client.DeleteTable(cmd.Context(), table.Name)
		if err != nil {
			if errors.Is(err, physical.ErrTableNotFound) {
				logger.Info("table does not exist", log.String("table", table.Name))
				continue
			}
			return fmt.Errorf("deleting table %s: %w", table.Name, err)
		}
		fmt.Printf("Deleted table %s\n", table.Name)
	}

	fmt.Println("Identity store torn down")
	return nil
}
