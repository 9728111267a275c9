// hermes — утилита командной строки для Hermes API.
//
// Использование:
//
//	hermes [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	run     Запуск планов и журнал событий run
//	plan    Планы каталога
//	test    Проверки подключения и smoke-прогоны воркеров
//	job     Состояние тестовых задач
//	worker  Конфигурация воркеров
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kmease-ttc/Hermes-sub004/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	defaultURL := os.Getenv("HERMES_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd := &cobra.Command{
		Use:           "hermes",
		Short:         "Hermes CLI: run diagnostic plans and test workers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL (env HERMES_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewPlanCmd(clientFn, outputFn),
		cli.NewTestCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewWorkerCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
