package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opennode/waldur-core-sub000/internal/core"
	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

// recoverable lists the entity names accepted by the recover command.
var recoverable = map[string]string{
	"resource": model.EntityResource,
	"link":     model.EntityLink,
	"spl":      model.EntityLink,
	"settings": model.EntitySettings,
}

func newRecoverCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <resource|link|settings> <id>",
		Short: "Schedule recovery of an ERRED entity",
		Example: `  conductorctl recover resource 6f1c0d2e-...
  conductorctl recover settings openstack-main`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, ok := recoverable[args[0]]
			if !ok {
				return fmt.Errorf("cannot recover %q: expected resource, link or settings", args[0])
			}

			ctx := cmd.Context()
			pool, err := e.corePool(ctx)
			if err != nil {
				return err
			}
			tc, err := e.temporal()
			if err != nil {
				return err
			}

			svc := core.NewResourceService(store.New(pool, e.logger), nil, core.NewTemporalStarter(tc), e.logger)
			if err := svc.RecoverEntity(ctx, entity, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recovery of %s %s scheduled\n", entity, args[1])
			return nil
		},
	}
}
