package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/taskledger/internal/ir"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Requester string
	ModelID   string
	Input     string
	InputFile string
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an inference task",
		Long: `Submit an inference task and print its task id.

model_id must be under 64 bytes and the input under 256 bytes.
Task ids are issued sequentially from 0 with no gaps; a rejected
submission does not consume an id.

Examples:
  taskledger submit --requester alice --model llama-7b --input "Hello world"
  taskledger submit --requester alice --model llama-7b --input-file prompt.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitTask(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Requester, "requester", "", "requester identity (required)")
	cmd.Flags().StringVar(&opts.ModelID, "model", "", "model id (required)")
	cmd.Flags().StringVar(&opts.Input, "input", "", "input data")
	cmd.Flags().StringVar(&opts.InputFile, "input-file", "", "read input data from file")
	_ = cmd.MarkFlagRequired("requester")
	_ = cmd.MarkFlagRequired("model")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")

	return cmd
}

func submitTask(opts *SubmitOptions, cmd *cobra.Command) error {
	input := opts.Input
	if opts.InputFile != "" {
		data, err := os.ReadFile(opts.InputFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read input file", err)
		}
		input = string(data)
	}

	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	taskID, err := e.ledger.Submit(context.Background(), ir.Identity(opts.Requester), opts.ModelID, input)
	if err != nil {
		return e.fail(err)
	}

	return e.out.Success(
		map[string]any{"task_id": taskID},
		fmt.Sprintf("task %d submitted", taskID),
	)
}
