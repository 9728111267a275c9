package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkerCmd создаёт группу команд для воркеров.
func NewWorkerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Inspect worker configuration",
	}

	var tenantID string
	config := &cobra.Command{
		Use:   "config SERVICE_KEY",
		Short: "Show how a worker resolves its secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientFn().GetWorkerConfig(args[0], tenantID)
			if err != nil {
				return err
			}

			outputFn().Print(
				[]string{"SERVICE", "SECRET", "STATUS", "VALID", "BASE_URL", "ERROR"},
				[][]string{{cfg.ServiceKey, cfg.SecretName, cfg.Status, strconv.FormatBool(cfg.Valid), cfg.BaseURL, cfg.Error}},
				cfg,
			)
			return nil
		},
	}
	config.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	cmd.AddCommand(config)

	return cmd
}
