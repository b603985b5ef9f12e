package cli

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Provisor/internal/ledger"
)

// NewHistoryCmd создаёт группу команд для просмотра истории apply.
// Работает только при настроенном ledger'е (DB_URL).
func NewHistoryCmd(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past apply runs (requires the Postgres ledger)",
	}

	cmd.AddCommand(
		newHistoryListCmd(deps),
		newHistoryShowCmd(deps),
	)

	return cmd
}

func newHistoryListCmd(deps Deps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent apply runs for the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := deps.OutputFn()

			pool, err := ledger.NewPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			history := ledger.NewHistoryRepo(pool)
			records, err := history.ListApplies(ctx, deps.ProjectFn(), limit)
			if err != nil {
				return err
			}

			out.PrintApplyHistory(records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Max runs to show")

	return cmd
}

func newHistoryShowCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show per-job results of an apply run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := deps.OutputFn()

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}

			pool, err := ledger.NewPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			history := ledger.NewHistoryRepo(pool)

			run, err := history.GetApply(ctx, runID)
			if err != nil {
				return err
			}

			jobs, err := history.GetApplyJobs(ctx, runID)
			if err != nil {
				return err
			}

			out.PrintApplyDetails(run, jobs)
			return nil
		},
	}
}
