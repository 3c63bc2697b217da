package cli

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/ir"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Name string
	Out  string
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a committee member key",
		Long: `Generate an ed25519 key pair for a committee member.

The private seed is written to --out (mode 0600). The public key is
printed as a committee entry ready to paste into the config file.

Example:
  taskledger keygen --name A --out keys/a.key`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateKey(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "member display name (required)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "private key output file (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func generateKey(opts *KeygenOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if _, err := os.Stat(opts.Out); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("refusing to overwrite existing key file %s", opts.Out))
	}

	s, err := committee.GenerateSigner(opts.Name, rand.Reader)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate key", err)
	}
	if err := committee.WriteKeyFile(opts.Out, s); err != nil {
		return WrapExitError(ExitCommandError, "failed to write key", err)
	}

	m := s.Member()
	return out.Success(m, fmt.Sprintf("{name: %q, public_key: %q}", m.Name, m.Key))
}

// SignOptions holds flags for the sign command.
type SignOptions struct {
	*RootOptions
	KeyFile string
	Payload string
}

// NewSignCommand creates the sign command.
func NewSignCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SignOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sign <task-id> [<output-hash>]",
		Short: "Sign a task result as a committee member",
		Long: `Sign the canonical message "{task_id}:{output_hash}" with a member key.

Give the output hash directly, or --payload to hash an inference output
file with SHA-256 first.

Examples:
  taskledger sign --key keys/a.key 0 deadbeef
  taskledger sign --key keys/a.key 0 --payload output.bin --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return signResult(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.KeyFile, "key", "k", "", "private key file (required)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "inference output file to hash")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func signResult(opts *SignOptions, args []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	taskID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid task id %q", args[0]), err)
	}

	var outputHash string
	switch {
	case len(args) == 2 && opts.Payload != "":
		return NewExitError(ExitCommandError, "give either <output-hash> or --payload, not both")
	case len(args) == 2:
		outputHash = args[1]
	case opts.Payload != "":
		data, err := os.ReadFile(opts.Payload)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read payload", err)
		}
		outputHash = ir.HashOutput(data)
	default:
		return NewExitError(ExitCommandError, "an <output-hash> or --payload is required")
	}

	s, err := committee.ReadKeyFile(opts.KeyFile, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load key", err)
	}

	sig := s.Sign(taskID, outputHash)
	out.VerboseLog("signed message %q", ir.CanonicalMessage(taskID, outputHash))

	return out.Success(map[string]any{
		"task_id":     taskID,
		"output_hash": outputHash,
		"signer":      s.Identity(),
		"signature":   sig.String(),
	}, fmt.Sprintf("--signer %s --signature %s", s.Identity(), sig))
}
