package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timetable/internal/core"
	"timetable/internal/seed"
	"timetable/pkg/domain"
)

// session bundles a freshly constructed schedule with its metrics exporter.
type session struct {
	schedule *core.Schedule
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
}

const (
	metricsFormatPrometheus = "prometheus"
	metricsFormatExpvar     = "expvar"
)

func newSession(cmd *cobra.Command, flags *globalFlags) (*session, error) {
	policy, err := domain.ParseSameDayPolicy(flags.sameDay)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(flags.timezone)
	if err != nil {
		return nil, domain.Errorf(domain.KindInvalidArgument, "unknown time zone %q", flags.timezone)
	}
	logger := flags.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []core.Option{core.WithLogger(logger)}
	sess := &session{}
	switch flags.metricsFormat {
	case metricsFormatPrometheus, "":
		sess.registry = prometheus.NewRegistry()
		recorder, err := core.NewPrometheusMetricsRecorder(sess.registry)
		if err != nil {
			return nil, err
		}
		opts = append(opts, core.WithMetrics(recorder))
	case metricsFormatExpvar:
		sess.expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetrics(sess.expvar))
	default:
		return nil, domain.Errorf(domain.KindInvalidArgument, "unknown metrics format %q", flags.metricsFormat)
	}
	if flags.trace {
		opts = append(opts, core.WithTracer(core.NewJSONLineTracer(cmd.ErrOrStderr(), nil)))
	}
	sess.schedule = core.NewInMemorySchedule(domain.NewCalendar(policy, loc), opts...)
	return sess, nil
}

func loadSeed(flags *globalFlags) (seed.Seed, error) {
	if flags.seedPath == "" {
		return seed.Default(), nil
	}
	return seed.LoadFile(flags.seedPath)
}

func (s *session) writeMetrics(w io.Writer) error {
	if s.expvar != nil {
		if _, err := s.expvar.WriteTo(w); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	}
	families, err := s.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const timeLayout = "2006-01-02 15:04"

func formatLecture(l domain.Lecture) string {
	return fmt.Sprintf("#%d %-20s %-12s %s-%s classroom=%d schools=%v",
		l.ID, l.Name, l.Lecturer,
		l.Time.Start.Format(timeLayout), l.Time.End.Format("15:04"),
		l.ClassroomID, l.SchoolIDs)
}
