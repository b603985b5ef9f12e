package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/Provisor/internal/config"
	"github.com/shaiso/Provisor/internal/runner"
)

// NewRunCmd создаёт команду run.
//
// Run выполняет скрипты job'ов локально в порядке зависимостей —
// smoke-тест конфига без обращения к workspace. Расписания
// игнорируются: каждый job запускается ровно один раз.
func NewRunCmd(deps Deps) *cobra.Command {
	var workDir string
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run job scripts locally in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := deps.OutputFn()

			cfg, err := config.Load(deps.ConfigFn())
			if err != nil {
				return err
			}

			r := runner.New(runner.Options{
				WorkDir:     workDir,
				MaxParallel: maxParallel,
				Logger:      deps.LoggerFn(),
			})

			results, err := r.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out.PrintRunResults(results)

			if runner.Failed(results) {
				return fmt.Errorf("local run finished with failures")
			}

			out.Success(fmt.Sprintf("All %d jobs succeeded", len(results)))
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "workdir", "", "Working directory for job scripts")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Max concurrent jobs (default 4)")

	return cmd
}
