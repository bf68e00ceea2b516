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

var initCmd = &cobra.Command{
	Use:           "init",
	SilenceUsage:  true,
	SilenceErrors: true,
	Short:         "Create the identity store tables",
	Long: `
Create every table the identity store uses: tokens, profiles and the
four identifier-binding tables. Each creation waits for the table to
become active before the next one starts; tables that already exist are
skipped.

Usage:
  $ idstore operator init --config=idstore.hcl
`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
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
		err := client.CreateTable(cmd.Context(), table)
		if err != nil {
			if errors.Is(err, physical.ErrTableExists) {
				logger.Info("table already exists", log.String("table", table.Name))
				continue
			}
			return fmt.Errorf("creating table %s: %w", table.Name, err)
		}
		fmt.Printf("Created table %s\n", table.Name)
	}

	fmt.Println("Identity store initialized")
	return nil
}
