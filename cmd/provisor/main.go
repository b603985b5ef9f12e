// provisor — провижининг jobs в CML workspace из декларативного конфига.
//
// Использование:
//
//	provisor [--api-url URL] [--project ID] [--config PATH] [--json] <command> [flags]
//
// Команды:
//
//	validate  Проверка конфига и порядок применения
//	plan      Сухое сравнение конфига с workspace
//	apply     Reconciliation конфига с workspace
//	run       Локальный запуск скриптов job'ов
//	jobs      Управление jobs workspace
//	history   История запусков apply
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Provisor/internal/cli"
	"github.com/shaiso/Provisor/internal/cml"
	"github.com/shaiso/Provisor/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger()

	var apiURL string
	var apiKey string
	var projectID string
	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "provisor",
		Short:         "provisor — declarative job provisioning for CML",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("CML_API_URL", ""), "CML workspace URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", envOr("CML_API_KEY", ""), "CML API v2 key")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", envOr("CML_PROJECT_ID", ""), "Target project ID")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "Path to the jobs config (default: config/jobs.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	deps := cli.Deps{
		ClientFn:  func() *cml.Client { return cml.NewClient(apiURL, apiKey) },
		ProjectFn: func() string { return projectID },
		ConfigFn:  func() string { return configPath },
		OutputFn:  func() *cli.Output { return cli.NewOutput(jsonOutput) },
		LoggerFn:  func() *slog.Logger { return logger },
	}

	rootCmd.AddCommand(
		cli.NewValidateCmd(deps),
		cli.NewPlanCmd(deps),
		cli.NewApplyCmd(deps),
		cli.NewRunCmd(deps),
		cli.NewJobsCmd(deps),
		cli.NewHistoryCmd(deps),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// envOr возвращает значение переменной окружения или def.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
