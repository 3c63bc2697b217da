package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taskledger/internal/ir"
)

// NewTaskCommand creates the task command.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "task <task-id>",
		Short: "Show a submitted task",
		Example: `  taskledger task 0
  taskledger task 0 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			rec, err := e.ledger.Task(context.Background(), taskID)
			if err != nil {
				return e.fail(err)
			}
			return e.out.Success(rec, fmt.Sprintf(
				"task %d\n  requester: %s\n  model_id:  %s\n  input:     %q\n  created:   %s",
				rec.TaskID, rec.Requester, rec.ModelID, rec.InputData, rec.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00")))
		},
	}
}

// NewResultCommand creates the result command.
func NewResultCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "result <task-id>",
		Short:         "Show the verified result of a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.ledger.Result(context.Background(), taskID)
			if err != nil {
				return e.fail(err)
			}
			signers := make([]string, len(res.SignerSet))
			for i, s := range res.SignerSet {
				signers[i] = string(s)
			}
			return e.out.Success(res, fmt.Sprintf(
				"task %d\n  output_hash: %s\n  verified:    %s\n  signers:\n    %s",
				res.TaskID, res.OutputHash, res.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
				strings.Join(signers, "\n    ")))
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status <task-id>",
		Short:         "Show the lifecycle state of a task (unknown, submitted, verified)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			status, err := e.ledger.Status(context.Background(), taskID)
			if err != nil {
				return e.fail(err)
			}
			return e.out.Success(
				map[string]any{"task_id": taskID, "status": status},
				fmt.Sprintf("task %d: %s", taskID, status),
			)
		},
	}
}

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	After int64
	Limit int
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List ledger events in log order",
		Example: `  taskledger events
  taskledger events --after 10 --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			events, err := e.ledger.Events(context.Background(), opts.After, opts.Limit)
			if err != nil {
				return e.fail(err)
			}

			views := make([]map[string]any, len(events))
			lines := make([]string, len(events))
			for i, ev := range events {
				payload, err := ev.Payload()
				if err != nil {
					return e.fail(err)
				}
				views[i] = map[string]any{"seq": ev.Seq, "kind": ev.Kind, "payload": payload}
				lines[i] = formatEvent(ev)
			}
			if len(lines) == 0 {
				lines = []string{"no events"}
			}
			return e.out.Success(views, strings.Join(lines, "\n"))
		},
	}

	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events with seq greater than this")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")

	return cmd
}

func formatEvent(ev ir.Event) string {
	switch {
	case ev.Submitted != nil:
		return fmt.Sprintf("%d %s task=%d requester=%s model=%s preview=%q",
			ev.Seq, ev.Kind, ev.Submitted.TaskID, ev.Submitted.Requester, ev.Submitted.ModelID, ev.Submitted.InputPreview)
	case ev.Verified != nil:
		return fmt.Sprintf("%d %s task=%d output_hash=%s",
			ev.Seq, ev.Kind, ev.Verified.TaskID, ev.Verified.OutputHash)
	}
	return fmt.Sprintf("%d %s", ev.Seq, ev.Kind)
}

func parseTaskID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid task id %q", arg), err)
	}
	return id, nil
}
