package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Provisor/internal/config"
	"github.com/shaiso/Provisor/internal/engine"
)

// NewValidateCmd создаёт команду validate.
//
// Validate разбирает конфиг, прогоняет полную валидацию и печатает
// порядок применения. Сетевых вызовов нет — команда работает offline.
func NewValidateCmd(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the jobs config and show apply order",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.OutputFn()

			cfg, err := config.Load(deps.ConfigFn())
			if err != nil {
				return err
			}

			if err := engine.Validate(cfg); err != nil {
				return err
			}

			dag, err := engine.BuildDAG(cfg)
			if err != nil {
				return err
			}

			out.PrintApplyOrder(dag)
			out.Success(fmt.Sprintf("Config is valid: %d jobs", dag.Size()))
			return nil
		},
	}
}
