package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/internal/logging"
	"github.com/goliatone/go-formflow/pkg/prompt"
)

const envPrefix = "FORMFLOW_"

// app carries what every command shares. Tests swap the writers, the logger
// and the prompt driver.
type app struct {
	out    io.Writer
	errOut io.Writer

	logLevel string
	devLog   bool
	logger   *zap.Logger

	newDriver func(out io.Writer) prompt.PromptDriver
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:       out,
		errOut:    errOut,
		newDriver: prompt.NewSurveyDriver,
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formflow",
		Short: "Run resumable multi-step forms",
		Long: `formflow runs multi-step forms in the terminal. Answers are saved as you
go, so an interrupted session picks up where it left off. Partial answers can
be pushed to a lead-capture endpoint once enough contact details are known.

Forms are either built in (` + "`formflow run --form audit`" + `) or loaded from a
YAML, JSON or OpenAPI document by path or URL.

Every flag can also be set through a FORMFLOW_* environment variable, for
example FORMFLOW_STATE_DIR or FORMFLOW_SYNC_URL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			logger, err := logging.New(logging.Config{Level: a.logLevel, Development: a.devLog})
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&a.devLog, "dev-log", envBool("DEV_LOG"), "human-readable development logs")

	cmd.AddCommand(
		newRunCommand(a),
		newResetCommand(a),
		newValidateCommand(a),
		newServeCommand(a),
		newListCommand(a),
	)
	return cmd
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + name); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envBool(name string) bool {
	switch strings.ToLower(envOr(name, "")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := envOr(name, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
