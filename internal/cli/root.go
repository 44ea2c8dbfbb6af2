package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"keuangan/internal/amqp"
	"keuangan/internal/config"
	"keuangan/internal/log"
	"keuangan/internal/metrics"
	"keuangan/internal/notify"
	"keuangan/internal/services"
)

// errReported marks a failure whose notices were already printed.
var errReported = errors.New("reported")

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
}

// session is everything one command needs: the loaded configuration, a
// logger and the open ledger.
type session struct {
	cfg      *config.Config
	logger   *log.Logger
	ledger   *services.Ledger
	metrics  *metrics.Metrics
	consumer *amqp.Client
	closer   io.Closer
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NewRootCommand builds the keuangan command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "keuangan",
		Short: "Personal income and expense ledger",
		Long: `keuangan records income and expense transactions, keeps a running
balance and serves a small web page for day to day use. Data lives in a
single storage slot and can be backed up, restored and exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			LoadEnvFile()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to TOML config file (default $"+config.EnvConfigPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newServeCommand(opts),
		newWatchCommand(opts),
		newAddCommand(opts),
		newListCommand(opts),
		newSummaryCommand(opts),
		newDeleteCommand(opts),
		newBackupCommand(opts),
		newRestoreCommand(opts),
		newExportCommand(opts),
	)
	return root
}

// Execute runs the command tree and prints any unreported error.
func Execute(ctx context.Context, root *cobra.Command) int {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return 1
}

// open loads the configuration and opens the ledger. Logs go to the command's
// error stream so stdout stays clean for data.
func (o *rootOptions) open(cmd *cobra.Command, withMetrics bool) (*session, error) {
	cfg, err := LoadAndValidateConfig(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger, err := SetupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	logger = logger.WithComponent(log.ComponentCLI)

	var m *metrics.Metrics
	if withMetrics {
		m = metrics.New()
	}
	l, res, err := OpenLedger(cmd.Context(), cfg, logger, m)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, ledger: l, metrics: m, consumer: res.Publisher, closer: res}, nil
}

// report prints notices to the error stream as "SEVERITY: message".
func report(w io.Writer, notices []notify.Notification) {
	for _, n := range notices {
		fmt.Fprintf(w, "%s: %s\n", severityLabel(n.Severity), n.Message)
	}
}

func severityLabel(s notify.Severity) string {
	switch s {
	case notify.Success:
		return "OK"
	case notify.Warning:
		return "WARN"
	default:
		return "ERROR"
	}
}

// reported prints the outcome's notices and turns err into errReported so
// Execute does not print it twice.
func reported(cmd *cobra.Command, out services.Outcome, err error) error {
	report(cmd.ErrOrStderr(), out.Notices)
	if err != nil {
		if len(out.Notices) == 0 {
			return err
		}
		return fmt.Errorf("%w: %w", errReported, err)
	}
	return nil
}
