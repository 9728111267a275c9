package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// waitOpts — параметры ожидания тестовой задачи.
type waitOpts struct {
	wait     bool
	interval time.Duration
	timeout  time.Duration
}

func (w *waitOpts) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&w.wait, "wait", false, "Poll the job until it finishes")
	cmd.Flags().DurationVar(&w.interval, "interval", 2*time.Second, "Polling interval with --wait")
	cmd.Flags().DurationVar(&w.timeout, "wait-timeout", 5*time.Minute, "Give up waiting after this long")
}

// NewTestCmd создаёт группу команд для проверок воркеров.
func NewTestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run connection and smoke tests against workers",
	}

	cmd.AddCommand(
		newTestConnectionCmd(clientFn, outputFn),
		newTestSmokeCmd(clientFn, outputFn),
	)

	return cmd
}

func newTestConnectionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts waitOpts

	cmd := &cobra.Command{
		Use:   "connection TENANT_ID",
		Short: "Check health endpoints of all HTTP workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			job, err := client.StartConnectionTest(args[0])
			if err != nil {
				return err
			}
			return reportJob(client, outputFn(), job, opts)
		},
	}
	opts.bind(cmd)

	return cmd
}

func newTestSmokeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts waitOpts
	var domain string

	cmd := &cobra.Command{
		Use:   "smoke TENANT_ID",
		Short: "Start every HTTP worker in smoke mode and check its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			job, err := client.StartSmokeTest(args[0], domain)
			if err != nil {
				return err
			}
			return reportJob(client, outputFn(), job, opts)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Domain for smoke runs")
	_ = cmd.MarkFlagRequired("domain")
	opts.bind(cmd)

	return cmd
}

// reportJob печатает задачу; с --wait сначала дожидается её завершения.
func reportJob(client *Client, out *Output, job *TestJob, opts waitOpts) error {
	out.Success(fmt.Sprintf("Job started: %s", job.ID))

	if opts.wait && !job.Finished() {
		finished, err := client.WaitJob(job.ID, opts.interval, opts.timeout)
		if err != nil {
			return err
		}
		job = finished
	}

	printJob(out, job)
	return nil
}

func printJob(out *Output, job *TestJob) {
	if job.Summary != "" {
		out.Success(fmt.Sprintf("Job %s %s: %s", job.ID, job.Status, job.Summary))
	} else {
		out.Success(fmt.Sprintf("Job %s %s: %d/%d processed", job.ID, job.Status, job.Progress.Processed, job.Progress.Total))
	}

	keys := make([]string, 0, len(job.Progress.Services))
	for k := range job.Progress.Services {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		p := job.Progress.Services[k]
		rows[i] = []string{k, p.Status, strconv.FormatInt(p.DurationMs, 10), strconv.Itoa(p.Attempts), p.Reason}
	}
	out.Print([]string{"SERVICE", "STATUS", "DURATION_MS", "ATTEMPTS", "REASON"}, rows, job)
}
