package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/workflow"
)

type periodicJob struct {
	workflow any
	queue    string
}

// periodicJobs mirrors the worker's schedules.
var periodicJobs = map[string]periodicJob{
	"schedule-backups":       {workflow.ScheduleBackupsWorkflow, model.QueueTasks},
	"delete-expired-backups": {workflow.DeleteExpiredBackupsWorkflow, model.QueueTasks},
	"reconcile-links":        {workflow.ReconcileLinksWorkflow, model.QueueBackground},
	"reconcile-settings":     {workflow.ReconcileSettingsWorkflow, model.QueueBackground},
	"alert-housekeeping":     {workflow.AlertHousekeepingWorkflow, model.QueueBackground},
}

func periodicJobNames() []string {
	names := make([]string, 0, len(periodicJobs))
	for name := range periodicJobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newTickCommand(e *env) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:       "tick <" + strings.Join(periodicJobNames(), "|") + ">",
		Short:     "Run a periodic job once, outside its schedule",
		Args:      cobra.ExactArgs(1),
		ValidArgs: periodicJobNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, ok := periodicJobs[args[0]]
			if !ok {
				return fmt.Errorf("unknown job %q, expected one of %s", args[0], strings.Join(periodicJobNames(), ", "))
			}

			tc, err := e.temporal()
			if err != nil {
				return err
			}

			id := fmt.Sprintf("%s-manual-%d", args[0], time.Now().Unix())
			run, err := tc.ExecuteWorkflow(cmd.Context(), temporalclient.StartWorkflowOptions{
				ID:        id,
				TaskQueue: job.queue,
			}, job.workflow)
			if err != nil {
				return fmt.Errorf("start %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started %s (workflow %s)\n", args[0], run.GetID())

			if wait {
				if err := run.Get(cmd.Context(), nil); err != nil {
					return fmt.Errorf("%s failed: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s finished\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the workflow to finish")
	return cmd
}
