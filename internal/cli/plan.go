package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Provisor/internal/config"
	"github.com/shaiso/Provisor/internal/provisioner"
)

// NewPlanCmd создаёт команду plan.
//
// Plan сравнивает конфиг с workspace и печатает, что сделал бы apply,
// ничего не меняя.
func NewPlanCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change, without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.OutputFn()

			cfg, err := config.Load(deps.ConfigFn())
			if err != nil {
				return err
			}

			prov := provisioner.New(provisioner.Config{
				API:       deps.ClientFn(),
				ProjectID: deps.ProjectFn(),
				Logger:    deps.LoggerFn(),
			})

			plan, err := prov.Plan(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out.PrintPlan(plan)

			create, update, noop, prune := plan.Counts()
			out.Success(fmt.Sprintf("Plan: %d to create, %d to update, %d unchanged, %d to prune",
				create, update, noop, prune))
			return nil
		},
	}
}
