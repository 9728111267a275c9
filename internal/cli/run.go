package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start runs and inspect their events",
	}

	cmd.AddCommand(
		newRunStartCmd(clientFn, outputFn),
		newRunEventsCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateRunRequest
	var async bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run a plan for a tenant and domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if async {
				queued, err := client.QueueRun(req)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Run queued: plan %s for %s/%s", queued.PlanID, queued.TenantID, queued.Domain))
				out.Print(
					[]string{"STATUS", "TENANT", "DOMAIN", "PLAN", "IDEMPOTENCY_KEY"},
					[][]string{{queued.Status, queued.TenantID, queued.Domain, queued.PlanID, queued.IdempotencyKey}},
					queued,
				)
				return nil
			}

			client.SetTimeout(timeout)
			summary, err := client.StartRun(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run %s finished: %s (%d/%d completed)",
				summary.RunID, summary.Status, summary.ServicesCompleted, summary.ServicesTotal))
			out.Print(
				[]string{"SERVICE", "STATUS", "DURATION_MS", "ATTEMPTS", "ERROR"},
				serviceRows(summary.Results),
				summary,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&req.Domain, "domain", "", "Domain to run the plan against")
	cmd.Flags().StringVar(&req.PlanID, "plan", "", "Plan ID from the catalog")
	cmd.Flags().StringVar(&req.IdempotencyKey, "idempotency-key", "", "Key to deduplicate queued runs")
	cmd.Flags().BoolVar(&async, "async", false, "Enqueue the run instead of waiting for the summary")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "How long to wait for a synchronous run")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func newRunEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "events RUN_ID",
		Short: "List lifecycle events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListRunEvents(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "TYPE", "STATUS", "AT"}
			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{e.ID, e.Type, e.Status, e.At}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}
}

func serviceRows(results map[string]ServiceResult) [][]string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, len(names))
	for i, name := range names {
		r := results[name]
		rows[i] = []string{name, r.Status, strconv.FormatInt(r.DurationMs, 10), strconv.Itoa(r.Attempts), r.Error}
	}
	return rows
}
