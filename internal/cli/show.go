package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"timetable/internal/seed"
	"timetable/pkg/domain"
)

type timetableDump struct {
	Schools    []domain.School    `json:"schools"`
	Classrooms []domain.Classroom `json:"classrooms"`
	Lectures   []domain.Lecture   `json:"lectures"`
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Seed the timetable and print its contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			out := cmd.OutOrStdout()
			dump := timetableDump{
				Schools:    sess.schedule.Schools(),
				Classrooms: sess.schedule.Classrooms(),
				Lectures:   sess.schedule.Lectures(),
			}
			if flags.jsonOutput {
				if err := outputJSON(out, dump); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, "Schools:")
				for _, sc := range dump.Schools {
					fmt.Fprintf(out, "  #%d %s (%d attendees) lectures=%v\n", sc.ID, sc.Name, sc.Amount, sc.LectureIDs)
				}
				fmt.Fprintln(out, "Classrooms:")
				for _, c := range dump.Classrooms {
					fmt.Fprintf(out, "  #%d %s (capacity %d) lectures=%v\n", c.ID, c.Name, c.Capacity, c.LectureIDs)
				}
				fmt.Fprintln(out, "Lectures:")
				for _, l := range dump.Lectures {
					fmt.Fprintf(out, "  %s\n", formatLecture(l))
				}
			}
			if flags.metrics {
				return sess.writeMetrics(out)
			}
			return nil
		},
	}
}
