package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"timetable/internal/seed"
	"timetable/pkg/domain"
)

type checkFailure struct {
	Entity  domain.EntityType `json:"entity"`
	Index   int               `json:"index"`
	Name    string            `json:"name"`
	Kind    domain.ErrorKind  `json:"kind"`
	Message string            `json:"message"`
}

type checkReport struct {
	Schools    int            `json:"schools"`
	Classrooms int            `json:"classrooms"`
	Lectures   int            `json:"lectures"`
	Failures   []checkFailure `json:"failures"`
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Replay a seed file and report every rejected descriptor",
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
			report, err := seed.Apply(context.Background(), sess.schedule, s, seed.Options{ContinueOnError: true})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := checkReport{
				Schools:    report.Schools,
				Classrooms: report.Classrooms,
				Lectures:   report.Lectures,
				Failures:   make([]checkFailure, 0, len(report.Failures)),
			}
			for _, f := range report.Failures {
				summary.Failures = append(summary.Failures, checkFailure{
					Entity:  f.Entity,
					Index:   f.Index,
					Name:    f.Name,
					Kind:    domain.KindOf(f.Err),
					Message: f.Err.Error(),
				})
			}

			if flags.jsonOutput {
				if err := outputJSON(out, summary); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "created %d schools, %d classrooms, %d lectures\n", summary.Schools, summary.Classrooms, summary.Lectures)
				for _, f := range summary.Failures {
					fmt.Fprintf(out, "rejected %s #%d %q: %s\n", f.Entity, f.Index, f.Name, f.Message)
				}
			}
			if flags.metrics {
				if err := sess.writeMetrics(out); err != nil {
					return err
				}
			}
			if len(summary.Failures) > 0 {
				return fmt.Errorf("%d descriptors rejected", len(summary.Failures))
			}
			return nil
		},
	}
}
