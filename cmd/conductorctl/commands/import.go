package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/backend/dummy"
	"github.com/opennode/waldur-core-sub000/internal/backend/objectstore"
	"github.com/opennode/waldur-core-sub000/internal/backend/openstack"
	"github.com/opennode/waldur-core-sub000/internal/event"
	"github.com/opennode/waldur-core-sub000/internal/quota"
	"github.com/opennode/waldur-core-sub000/internal/reconcile"
	"github.com/opennode/waldur-core-sub000/internal/store"
)

func newImportCommand(e *env) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "import <spl-id>",
		Short: "List provider resources unknown locally, optionally adopting them",
		Example: `  # Show what would be imported
  conductorctl import 0b5e...

  # Insert the resources
  conductorctl import 0b5e... --apply`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := e.corePool(ctx)
			if err != nil {
				return err
			}

			st := store.New(pool, e.logger)
			engine := quota.NewEngine(quota.DefaultRegistry(), e.logger)
			st.Observe(quota.NewObserver(engine))
			st.Listen(event.NewListener(event.NewDBSink(pool)))

			lc, err := st.GetLinkContext(ctx, args[0])
			if err != nil {
				return err
			}

			registry := backend.NewRegistry()
			registry.Register(dummy.Type, dummy.NewFactory().New)
			registry.Register(openstack.Type, openstack.NewFactory(nil, e.logger))
			registry.Register(objectstore.Type, objectstore.NewFactory(e.logger))

			b, err := registry.For(lc.Settings, lc.Link.TenantID)
			if err != nil {
				return err
			}
			remote, err := b.GetResourcesForImport(ctx, lc.Link)
			if err != nil {
				return fmt.Errorf("list importable resources: %w", err)
			}
			local, err := st.ListResourcesByLink(ctx, lc.Link.ID)
			if err != nil {
				return err
			}

			plan := reconcile.InstancePlan{Create: reconcile.PlanInstances(lc.Link.ID, local, remote).Create}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BACKEND ID\tTYPE\tNAME\tSTATE")
			for _, r := range plan.Create {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.BackendID, r.Type, r.Name, r.State)
			}
			tw.Flush()

			if !apply || len(plan.Create) == 0 {
				return nil
			}
			res, err := reconcile.NewApplier(st, engine, e.logger).ApplyInstances(ctx, plan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d resources\n", res.Created)
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "insert the listed resources")
	return cmd
}
