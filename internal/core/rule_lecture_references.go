package core

import (
	"context"
	"fmt"

	"timetable/pkg/domain"
)

// NewLectureReferencesRule returns the rule requiring lecture references to resolve.
func NewLectureReferencesRule() domain.Rule {
	return lectureReferencesRule{}
}

type lectureReferencesRule struct{}

func (lectureReferencesRule) Name() string { return "lecture_references" }

func (r lectureReferencesRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, lecture := range proposedLectures(changes) {
		if _, ok := view.FindClassroom(lecture.ClassroomID); !ok {
			res.Violations = append(res.Violations, blocking(r.Name(), domain.KindNotFound, domain.EntityClassroom, lecture.ClassroomID,
				fmt.Sprintf("lecture %d references missing classroom %d", lecture.ID, lecture.ClassroomID)))
		}
		for _, schoolID := range lecture.SchoolIDs {
			if _, ok := view.FindSchool(schoolID); !ok {
				res.Violations = append(res.Violations, blocking(r.Name(), domain.KindNotFound, domain.EntitySchool, schoolID,
					fmt.Sprintf("lecture %d references missing school %d", lecture.ID, schoolID)))
			}
		}
	}
	return res, nil
}
