package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewPlanCmd создаёт группу команд для планов каталога.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect execution plans",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List plans",
			RunE: func(cmd *cobra.Command, args []string) error {
				plans, err := clientFn().ListPlans()
				if err != nil {
					return err
				}

				rows := make([][]string, len(plans))
				for i, p := range plans {
					rows[i] = []string{p.ID, p.Name, strconv.Itoa(p.Services), strconv.FormatInt(p.MaxRunDurationMs, 10)}
				}
				outputFn().Print([]string{"ID", "NAME", "SERVICES", "MAX_DURATION_MS"}, rows, plans)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show ID",
			Short: "Show services of a plan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				plan, err := clientFn().GetPlan(args[0])
				if err != nil {
					return err
				}

				rows := make([][]string, len(plan.Services))
				for i, s := range plan.Services {
					rows[i] = []string{s.Name, s.WorkerKey, strings.Join(s.DependsOn, ",")}
				}
				outputFn().Print([]string{"SERVICE", "WORKER", "DEPENDS_ON"}, rows, plan)
				return nil
			},
		},
	)

	return cmd
}
