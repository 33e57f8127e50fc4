package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opennode/waldur-core-sub000/internal/db"
)

func newMigrateCommand(e *env) *cobra.Command {
	var (
		dir    string
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			if dir == "" {
				dir = e.cfg.MigrationsDir
			}
			out := cmd.OutOrStdout()

			if status {
				migrations, err := db.MigrationStatus(cmd.Context(), e.cfg.CoreDatabaseURL, dir)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tFILE\tSTATE")
				for _, m := range migrations {
					state := "pending"
					if m.Applied {
						state = "applied"
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", m.Version, m.File, state)
				}
				return tw.Flush()
			}

			applied, err := db.RunMigrations(cmd.Context(), e.cfg.CoreDatabaseURL, dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(out, "applied %05d\n", v)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migration files directory (default $MIGRATIONS_DIR)")
	cmd.Flags().BoolVar(&status, "status", false, "list migrations and whether they are applied")
	return cmd
}
