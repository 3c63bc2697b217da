package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/taskledger/internal/ir"
)

// AttestOptions holds flags for the attest command.
type AttestOptions struct {
	*RootOptions
	File       string
	Signers    []string
	Signatures []string
}

// NewAttestCommand creates the attest command.
func NewAttestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attest [<task-id> <output-hash>]",
		Short: "Submit a committee attestation for a task",
		Long: `Submit signatures from committee members over "{task_id}:{output_hash}".

The result is committed if at least 3 distinct committee members signed
and every signature verifies. Signers and signatures are paired by
position. Alternatively, read a JSON attestation from a file:

  {"task_id": 0, "output_hash": "deadbeef",
   "signers": ["<hex pubkey>", ...], "signatures": ["<hex sig>", ...]}

Examples:
  taskledger attest 0 deadbeef \
    --signer $A --signature $SIG_A \
    --signer $B --signature $SIG_B \
    --signer $C --signature $SIG_C
  taskledger attest --file attestation.json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.File != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			att, err := buildAttestation(opts, args)
			if err != nil {
				return err
			}
			return submitAttestation(opts, att, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "", "read attestation JSON from file")
	cmd.Flags().StringArrayVar(&opts.Signers, "signer", nil, "signer public key (hex), repeatable")
	cmd.Flags().StringArrayVar(&opts.Signatures, "signature", nil, "signature (hex), repeatable")
	cmd.MarkFlagsMutuallyExclusive("file", "signer")
	cmd.MarkFlagsMutuallyExclusive("file", "signature")

	return cmd
}

func buildAttestation(opts *AttestOptions, args []string) (ir.Attestation, error) {
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return ir.Attestation{}, WrapExitError(ExitCommandError, "failed to read attestation file", err)
		}
		var att ir.Attestation
		if err := json.Unmarshal(data, &att); err != nil {
			return ir.Attestation{}, WrapExitError(ExitCommandError, "invalid attestation JSON", err)
		}
		return att, nil
	}

	taskID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return ir.Attestation{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid task id %q", args[0]), err)
	}

	att := ir.Attestation{
		TaskID:     taskID,
		OutputHash: args[1],
		Signers:    make([]ir.Identity, len(opts.Signers)),
		Signatures: make([]ir.Signature, len(opts.Signatures)),
	}
	for i, s := range opts.Signers {
		att.Signers[i] = ir.Identity(s)
	}
	for i, s := range opts.Signatures {
		sig, err := ir.ParseSignature(s)
		if err != nil {
			return ir.Attestation{}, WrapExitError(ExitCommandError, fmt.Sprintf("signature %d", i), err)
		}
		att.Signatures[i] = sig
	}
	return att, nil
}

func submitAttestation(opts *AttestOptions, att ir.Attestation, cmd *cobra.Command) error {
	e, err := openEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.ledger.SubmitAttestation(context.Background(), att)
	if err != nil {
		return e.fail(err)
	}

	return e.out.Success(res, fmt.Sprintf("task %d verified: %s (%d signers)",
		res.TaskID, res.OutputHash, len(res.SignerSet)))
}
