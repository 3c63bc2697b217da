// Package config loads the ledger's CUE configuration file.
//
// A config file is plain CUE, unified with the embedded #Config schema:
//
//	database:   "taskledger.db"
//	log_level:  "info"
//	log_format: "text"
//	committee: [
//		{name: "A", public_key: "3b6a27bc..."},
//	]
//
// Protocol constants (quorum threshold, length limits) are not
// configurable.
package config

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/taskledger/internal/committee"
)

//go:embed schema.cue
var schemaCUE string

// Error codes for configuration failures.
const (
	ErrCodeNotFound = "CONFIG_NOT_FOUND"
	ErrCodeLoad     = "CONFIG_LOAD_ERROR"
	ErrCodeInvalid  = "CONFIG_INVALID"
)

// Config is the decoded configuration.
type Config struct {
	Database  string             `json:"database"`
	LogLevel  string             `json:"log_level"`
	LogFormat string             `json:"log_format"`
	Members   []committee.Member `json:"committee"`
}

// Error is a configuration failure, with the CUE source position when known.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Default returns the configuration used when no file is given: schema
// defaults and an empty committee.
func Default() *Config {
	return &Config{
		Database:  "taskledger.db",
		LogLevel:  "info",
		LogFormat: "text",
		Members:   []committee.Member{},
	}
}

// Load reads and validates the CUE file at path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	instances := load.Instances([]string{filepath.Base(path)}, &load.Config{Dir: filepath.Dir(path)})
	if len(instances) == 0 {
		return nil, &Error{Code: ErrCodeLoad, Message: fmt.Sprintf("no CUE instance in %s", path)}
	}
	if err := instances[0].Err; err != nil {
		return nil, cueError(ErrCodeLoad, err)
	}

	file := ctx.BuildInstance(instances[0])
	if err := file.Err(); err != nil {
		return nil, cueError(ErrCodeLoad, err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeInvalid, err)
	}

	cfg := Default()
	if err := value.Decode(cfg); err != nil {
		return nil, cueError(ErrCodeInvalid, err)
	}

	// Size and key distinctness are checked by committee.New.
	if _, err := cfg.Committee(); err != nil {
		return nil, &Error{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return cfg, nil
}

// cueError converts a CUE error to *Error, keeping the first position.
func cueError(code string, err error) *Error {
	e := &Error{Code: code, Message: cueerrors.Details(err, nil)}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		e.Pos = positions[0]
	}
	return e
}

// Committee builds the configured committee.
func (c *Config) Committee() (*committee.Committee, error) {
	return committee.New(c.Members...)
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler returns a slog handler writing to w in LogFormat at level.
func (c *Config) Handler(w io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// FileSource is a committee.Source that re-reads the config file on every
// call, so membership edits take effect without a restart.
type FileSource struct {
	Path string
}

// Committee implements committee.Source.
func (s FileSource) Committee(ctx context.Context) (*committee.Committee, error) {
	cfg, err := Load(s.Path)
	if err != nil {
		return nil, fmt.Errorf("committee source: %w", err)
	}
	return cfg.Committee()
}
