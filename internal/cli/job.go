package cli

import (
	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для тестовых задач.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect test jobs",
	}

	var opts waitOpts
	status := &cobra.Command{
		Use:   "status ID",
		Short: "Show progress of a test job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()

			var job *TestJob
			var err error
			if opts.wait {
				job, err = client.WaitJob(args[0], opts.interval, opts.timeout)
			} else {
				job, err = client.GetJob(args[0])
			}
			if err != nil {
				return err
			}

			printJob(outputFn(), job)
			return nil
		},
	}
	opts.bind(status)
	cmd.AddCommand(status)

	return cmd
}
