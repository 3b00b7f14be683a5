package core

import (
	"context"
	"fmt"

	"timetable/pkg/domain"
)

// NewReferentialBlockRule returns the rule refusing to delete a school or
// classroom while a lecture still references it.
func NewReferentialBlockRule() domain.Rule {
	return referentialBlockRule{}
}

type referentialBlockRule struct{}

func (referentialBlockRule) Name() string { return "referential_block" }

func (r referentialBlockRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Action != domain.ActionDelete {
			continue
		}
		var dependents []int
		var id int
		switch rec := change.Before.(type) {
		case domain.School:
			id = rec.ID
			for _, lecture := range view.ListLectures() {
				if lecture.AttendedBy(rec.ID) {
					dependents = append(dependents, lecture.ID)
				}
			}
		case domain.Classroom:
			id = rec.ID
			for _, lecture := range view.ListLectures() {
				if lecture.ClassroomID == rec.ID {
					dependents = append(dependents, lecture.ID)
				}
			}
		default:
			continue
		}
		if len(dependents) > 0 {
			res.Violations = append(res.Violations, blocking(r.Name(), domain.KindReferentialBlock, change.Entity, id,
				fmt.Sprintf("%s %d is still referenced by lectures %v", change.Entity, id, dependents)))
		}
	}
	return res, nil
}
