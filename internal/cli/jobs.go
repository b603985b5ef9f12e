package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewJobsCmd создаёт группу команд для работы с jobs workspace.
func NewJobsCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage workspace jobs",
	}

	cmd.AddCommand(
		newJobsListCmd(deps),
		newJobsShowCmd(deps),
		newJobsDeleteCmd(deps),
		newJobsStartCmd(deps),
	)

	return cmd
}

func newJobsListCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs in the workspace project",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := deps.ClientFn()
			out := deps.OutputFn()

			jobs, err := client.ListJobs(cmd.Context(), deps.ProjectFn())
			if err != nil {
				return err
			}

			out.PrintWorkspaceJobs(jobs)
			return nil
		},
	}
}

func newJobsShowCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show JOB_ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := deps.ClientFn()
			out := deps.OutputFn()

			job, err := client.GetJob(cmd.Context(), deps.ProjectFn(), args[0])
			if err != nil {
				return err
			}

			out.PrintWorkspaceJob(job)
			return nil
		},
	}
}

func newJobsDeleteCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "delete JOB_ID",
		Short: "Delete a job from the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := deps.ClientFn()
			out := deps.OutputFn()

			if err := client.DeleteJob(cmd.Context(), deps.ProjectFn(), args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job deleted: %s", args[0]))
			return nil
		},
	}
}

func newJobsStartCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "start JOB_ID",
		Short: "Trigger a manual run of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := deps.ClientFn()
			out := deps.OutputFn()

			run, err := client.CreateJobRun(cmd.Context(), deps.ProjectFn(), args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.PrintJobRun(run)
			return nil
		},
	}
}
