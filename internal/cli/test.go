package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/taskledger/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden traces instead of comparing
	Filter string // glob over scenario file names, without extension
}

// ScenarioReport is the outcome of one scenario file.
type ScenarioReport struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// SuiteReport summarises a test run.
type SuiteReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run ledger scenarios",
		Long: `Run YAML ledger scenarios, each against a fresh in-memory ledger.

A scenario passes when every step outcome and assertion holds and, if
golden/<name>.golden exists next to the scenarios, its event trace
matches byte for byte.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - command error (missing directory, bad filter)

Examples:
  taskledger test ./scenarios
  taskledger test ./scenarios --filter "retry*"
  taskledger test ./scenarios --update
  taskledger test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden traces")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")

	return cmd
}

func runSuite(opts *TestOptions, dir string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "invalid --filter pattern", err)
	}

	files, err := scenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list scenarios", err)
	}

	report := SuiteReport{Scenarios: make([]ScenarioReport, 0, len(files))}
	var lines []string
	for _, file := range files {
		r := checkScenario(file, opts.Update)
		report.Scenarios = append(report.Scenarios, r)
		if r.Pass {
			report.Passed++
			lines = append(lines, "✓ "+r.Name)
			continue
		}
		report.Failed++
		lines = append(lines, "✗ "+r.Name)
		for _, e := range r.Errors {
			lines = append(lines, "  "+e)
		}
	}

	if len(files) == 0 {
		lines = append(lines, "no scenarios found")
	}
	lines = append(lines, "", fmt.Sprintf("%d passed, %d failed", report.Passed, report.Failed))

	if report.Failed == 0 {
		return out.Success(report, strings.Join(lines, "\n"))
	}

	msg := fmt.Sprintf("%d scenario(s) failed", report.Failed)
	if out.Format == "json" {
		if err := out.Error("TEST_FAILED", msg, report); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out.Writer, strings.Join(lines, "\n"))
	}
	return NewExitError(ExitFailure, msg)
}

// scenarioFiles lists *.yaml and *.yml files under dir in lexical order.
func scenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// checkScenario runs one scenario file and compares or rewrites its golden
// trace at <dir>/golden/<name>.golden.
func checkScenario(file string, update bool) ScenarioReport {
	failed := func(name string, err error) ScenarioReport {
		return ScenarioReport{Name: name, Errors: []string{err.Error()}}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, fmt.Errorf("run: %w", err))
	}

	trace, err := harness.Snapshot(scenario.Name, result)
	if err != nil {
		return failed(scenario.Name, fmt.Errorf("snapshot: %w", err))
	}

	golden := filepath.Join(filepath.Dir(file), "golden", scenario.Name+".golden")
	switch want, err := os.ReadFile(golden); {
	case update:
		if err := os.MkdirAll(filepath.Dir(golden), 0o755); err != nil {
			return failed(scenario.Name, err)
		}
		if err := os.WriteFile(golden, trace, 0o644); err != nil {
			return failed(scenario.Name, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return failed(scenario.Name, err)
	case !bytes.Equal(want, trace):
		result.AddError("trace does not match golden file (run with --update to regenerate)")
	}

	return ScenarioReport{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
}
