package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timetable/internal/core"
	"timetable/internal/seed"
	"timetable/pkg/domain"
)

func newLecturesCmd(flags *globalFlags) *cobra.Command {
	var (
		schoolID    int
		classroomID int
		from        string
		to          string
	)
	cmd := &cobra.Command{
		Use:   "lectures",
		Short: "List lectures of a school or classroom, optionally within an interval",
		Example: `  timetable lectures --school 2
  timetable lectures --classroom 2 --from 2017-02-01T00:00:00Z --to 2017-02-03T23:59:00Z`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, id, err := lectureOwner(schoolID, classroomID)
			if err != nil {
				return err
			}
			opts := core.Options{ID: id, View: core.ViewLectures}
			if from != "" || to != "" {
				interval, err := parseInterval(from, to)
				if err != nil {
					return err
				}
				opts.View = core.ViewInterval
				opts.Interval = interval
			}

			sess, err := newSession(cmd, flags)
			if err != nil {
				return err
			}
			s, err := loadSeed(flags)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if _, err := seed.Apply(ctx, sess.schedule, s, seed.Options{}); err != nil {
				return err
			}

			projection, err := sess.schedule.Get(ctx, entity, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				return outputJSON(out, projection.Lectures)
			}
			if len(projection.Lectures) == 0 {
				fmt.Fprintln(out, "no lectures")
				return nil
			}
			for _, l := range projection.Lectures {
				fmt.Fprintln(out, formatLecture(l))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&schoolID, "school", 0, "School id")
	cmd.Flags().IntVar(&classroomID, "classroom", 0, "Classroom id")
	cmd.Flags().StringVar(&from, "from", "", "Interval start (RFC 3339)")
	cmd.Flags().StringVar(&to, "to", "", "Interval end (RFC 3339)")
	return cmd
}

func lectureOwner(schoolID, classroomID int) (domain.EntityType, int, error) {
	switch {
	case schoolID > 0 && classroomID > 0:
		return "", 0, fmt.Errorf("--school and --classroom are mutually exclusive")
	case schoolID > 0:
		return domain.EntitySchool, schoolID, nil
	case classroomID > 0:
		return domain.EntityClassroom, classroomID, nil
	default:
		return "", 0, fmt.Errorf("one of --school or --classroom is required")
	}
}

func parseInterval(from, to string) (domain.TimeRange, error) {
	if from == "" || to == "" {
		return domain.TimeRange{}, fmt.Errorf("--from and --to must be given together")
	}
	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("parse --from: %w", err)
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return domain.TimeRange{}, fmt.Errorf("parse --to: %w", err)
	}
	return domain.NewTimeRange(start, end), nil
}
