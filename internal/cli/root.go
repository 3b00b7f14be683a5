// Package cli implements the timetable command line bootstrap.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

// SetVersion overrides the version reported by --version.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	seedPath      string
	sameDay       string
	verbose       bool
	timezone      string
	jsonOutput    bool
	metrics       bool
	metricsFormat string
	trace         bool

	logger *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:     "timetable",
		Version: version,
		Short:   "Build and inspect a lecture timetable",
		Long: `timetable seeds an in-memory timetable of schools, classrooms and lectures
and reports its contents.

Every lecture is checked before it is stored: no double-booked classroom, no
school attending two lectures at once and no classroom asked to seat more
attendees than it holds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if flags.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			config.OutputPaths = []string{"stderr"}
			logger, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			flags.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if flags.logger != nil {
				_ = flags.logger.Sync()
			}
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&flags.seedPath, "seed", "", "Seed YAML file (defaults to the embedded bootstrap timetable)")
	pf.StringVar(&flags.sameDay, "same-day", "calendar-date", "Same-day test: calendar-date or weekday-month")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")
	pf.StringVar(&flags.timezone, "tz", "Local", "Time zone whose calendar decides same-day checks (IANA name, UTC or Local)")
	pf.BoolVar(&flags.metrics, "metrics", false, "Print operation metrics after the command")
	pf.StringVar(&flags.metricsFormat, "metrics-format", metricsFormatPrometheus, "Metrics output: prometheus or expvar")
	pf.BoolVar(&flags.trace, "trace", false, "Write one JSON line per operation to stderr")

	root.AddCommand(newShowCmd(flags))
	root.AddCommand(newCheckCmd(flags))
	root.AddCommand(newLecturesCmd(flags))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
