package operator

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stephnangue/idstore/cmd/helpers"
	"github.com/stephnangue/idstore/repository"
	"github.com/stephnangue/idstore/repository/token"
)

var (
	sweepType  string
	sweepValue string

	sweepCmd = &cobra.Command{
		Use:           "sweep",
		SilenceUsage:  true,
		SilenceErrors: true,
		Short:         "Delete an expired token",
		Long: `
Delete a token that is past its expiry. Tokens are revoked by forcing
their expiry, not by deletion, so expired rows linger until swept. The
delete is conditional: a token that is still live is left in place.

Usage:
  $ idstore operator sweep --value=<token-value> --config=idstore.hcl
`,
		RunE: runSweep,
	}
)

func init() {
	sweepCmd.Flags().StringVar(&sweepType, "type", string(token.BearerAccess), "Token type to sweep")
	sweepCmd.Flags().StringVar(&sweepValue, "value", "", "Token value to sweep")
	sweepCmd.MarkFlagRequired("value")
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	tokens := token.NewStore(client, logger)
	err = tokens.DeleteExpired(cmd.Context(), token.Type(sweepType), sweepValue)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			fmt.Println("Token is absent or still live; nothing swept")
			return nil
		}
		return err
	}

	fmt.Println("Token swept")
	return nil
}
