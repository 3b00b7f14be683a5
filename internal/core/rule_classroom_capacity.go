package core

import (
	"context"
	"fmt"

	"timetable/pkg/domain"
)

// NewClassroomCapacityRule returns the rule enforcing that the schools
// attending a lecture fit into its classroom.
func NewClassroomCapacityRule() domain.Rule {
	return classroomCapacityRule{}
}

type classroomCapacityRule struct{}

func (classroomCapacityRule) Name() string { return "classroom_capacity" }

func (r classroomCapacityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	proposed := newProposedView(view, changes)
	res := domain.Result{}
	for _, lecture := range affectedByCapacity(proposed, changes) {
		classroom, ok := proposed.FindClassroom(lecture.ClassroomID)
		if !ok {
			continue
		}
		total := 0
		for _, schoolID := range lecture.SchoolIDs {
			if school, ok := proposed.FindSchool(schoolID); ok {
				total += school.Amount
			}
		}
		if total > classroom.Capacity {
			res.Violations = append(res.Violations, blocking(r.Name(), domain.KindCapacityExceeded, domain.EntityLecture, lecture.ID,
				fmt.Sprintf("lecture %d needs %d seats but classroom %s (%d) holds %d", lecture.ID, total, classroom.Name, classroom.ID, classroom.Capacity)))
		}
	}
	return res, nil
}

// affectedByCapacity collects the lectures whose seat count depends on changes:
// changed lectures, lectures attended by a changed school and lectures held in
// a changed classroom.
func affectedByCapacity(view domain.RuleView, changes []domain.Change) []domain.Lecture {
	schools := make(map[int]struct{})
	classrooms := make(map[int]struct{})
	lectures := make(map[int]struct{})
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			continue
		}
		switch rec := change.After.(type) {
		case domain.School:
			schools[rec.ID] = struct{}{}
		case domain.Classroom:
			classrooms[rec.ID] = struct{}{}
		case domain.Lecture:
			lectures[rec.ID] = struct{}{}
		}
	}
	if len(schools)+len(classrooms)+len(lectures) == 0 {
		return nil
	}

	var out []domain.Lecture
	for _, lecture := range view.ListLectures() {
		if _, ok := lectures[lecture.ID]; ok {
			out = append(out, lecture)
			continue
		}
		if _, ok := classrooms[lecture.ClassroomID]; ok {
			out = append(out, lecture)
			continue
		}
		for _, schoolID := range lecture.SchoolIDs {
			if _, ok := schools[schoolID]; ok {
				out = append(out, lecture)
				break
			}
		}
	}
	return out
}
