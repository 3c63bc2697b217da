package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/taskledger/internal/committee"
	"github.com/roach88/taskledger/internal/config"
	"github.com/roach88/taskledger/internal/ledger"
	"github.com/roach88/taskledger/internal/store"
)

// env is an opened ledger plus what a command needs to report on it.
type env struct {
	ledger    *ledger.Ledger
	store     *store.Store
	logger    *slog.Logger
	requestID string
	out       *OutputFormatter
}

// Close releases the database.
func (e *env) Close() error {
	return e.store.Close()
}

// loadConfig reads --config, or returns defaults when it is unset.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose forces Debug.
func newLogger(opts *RootOptions, cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Level()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(cfg.Handler(w, level))
}

// openEnv loads config, configures logging, and opens the ledger.
// The committee is re-read from the config file on each attestation.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := newLogger(opts, cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	dbPath := cfg.Database
	if opts.Database != "" {
		dbPath = opts.Database
	}

	logger.Debug("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	var source committee.Source = config.FileSource{Path: opts.Config}
	if opts.Config == "" {
		empty, err := cfg.Committee()
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "invalid committee", err)
		}
		source = committee.NewStatic(empty)
	}

	// One request id per CLI invocation; it is both the log correlation id
	// and the response trace_id.
	requestID := ledger.UUIDv7Generator{}.Generate()

	l := ledger.New(st, source,
		ledger.WithLogger(logger),
		ledger.WithSink(ledger.SlogSink{Logger: logger.With("component", "sink")}),
		ledger.WithRequestIDs(ledger.NewFixedGenerator(requestID)),
	)

	return &env{
		ledger:    l,
		store:     st,
		logger:    logger,
		requestID: requestID,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
			TraceID:   requestID,
		},
	}, nil
}

// fail reports err in the configured format and converts it to an exit code:
// ledger rejections exit 1, everything else exits 2.
func (e *env) fail(err error) error {
	var le *ledger.Error
	if errors.As(err, &le) {
		if outErr := e.out.Error(string(le.Code), le.Message, errorDetails(le)); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, string(le.Code), err)
	}
	if outErr := e.out.Error(ErrCodeInternal, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitCommandError, "command failed", err)
}

func errorDetails(le *ledger.Error) map[string]string {
	details := make(map[string]string, len(le.Details)+2)
	for k, v := range le.Details {
		details[k] = v
	}
	if le.Code != ledger.ErrCodeValidation {
		details["task_id"] = fmt.Sprintf("%d", le.TaskID)
	}
	if le.Signer != "" {
		details["signer"] = string(le.Signer)
	}
	return details
}
