package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Provisor/internal/config"
	"github.com/shaiso/Provisor/internal/events"
	"github.com/shaiso/Provisor/internal/ledger"
	"github.com/shaiso/Provisor/internal/provisioner"
	"github.com/shaiso/Provisor/internal/telemetry"
)

// NewApplyCmd создаёт команду apply.
//
// Apply приводит workspace в соответствие с конфигом. Опциональные
// подписчики результата включаются окружением и флагами:
//   - AMQP_URL — публикация событий в RabbitMQ
//   - --ledger (DSN в DB_URL) — запись истории в Postgres
//   - PUSHGATEWAY_URL — отправка метрик в Pushgateway
func NewApplyCmd(deps Deps) *cobra.Command {
	var prune bool
	var useLedger bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the jobs config with the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := deps.OutputFn()
			logger := deps.LoggerFn()

			cfg, err := config.Load(deps.ConfigFn())
			if err != nil {
				return err
			}

			provCfg := provisioner.Config{
				API:       deps.ClientFn(),
				ProjectID: deps.ProjectFn(),
				Logger:    logger,
				Metrics:   telemetry.NewMetrics(),
			}

			// События — если задан AMQP_URL.
			if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
				conn, err := events.Dial(amqpURL, logger)
				if err != nil {
					return fmt.Errorf("connect to RabbitMQ: %w", err)
				}
				defer conn.Close()

				if err := events.SetupTopology(ctx, conn); err != nil {
					return fmt.Errorf("setup RabbitMQ topology: %w", err)
				}
				provCfg.Events = events.NewPublisher(conn, logger)
			}

			// История — по явному флагу.
			if useLedger {
				pool, err := ledger.NewPool(ctx)
				if err != nil {
					return fmt.Errorf("connect to ledger db: %w", err)
				}
				defer pool.Close()

				history := ledger.NewHistoryRepo(pool)
				if err := history.EnsureSchema(ctx); err != nil {
					return err
				}
				provCfg.History = history
			}

			prov := provisioner.New(provCfg)

			result, err := prov.Apply(ctx, cfg, provisioner.ApplyOptions{Prune: prune})
			if err != nil {
				return err
			}

			out.PrintApplyResult(result)

			// Метрики уходят в Pushgateway и при частичном провале:
			// счётчики failed-job'ов как раз для этого.
			if gatewayURL := os.Getenv("PUSHGATEWAY_URL"); gatewayURL != "" {
				if err := provCfg.Metrics.Push(gatewayURL, deps.ProjectFn()); err != nil {
					out.Warn(fmt.Sprintf("metrics push failed: %v", err))
				}
			}

			if result.Failed() {
				return fmt.Errorf("apply finished with failures (run %s)", result.RunID)
			}

			out.Success(fmt.Sprintf("Apply complete (run %s)", result.RunID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Delete workspace jobs missing from the config")
	cmd.Flags().BoolVar(&useLedger, "ledger", false, "Record the apply in the Postgres ledger (DB_URL)")

	return cmd
}
