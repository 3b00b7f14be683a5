package core

import (
	"context"
	"fmt"

	"timetable/pkg/domain"
)

// NewClassroomConflictRule returns the rule forbidding overlapping lectures in one room.
func NewClassroomConflictRule() domain.Rule {
	return classroomConflictRule{}
}

type classroomConflictRule struct{}

func (classroomConflictRule) Name() string { return "classroom_conflict" }

func (r classroomConflictRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	cal := view.Calendar()
	proposed := newProposedView(view, changes)
	for _, lecture := range proposedLectures(changes) {
		for _, other := range proposed.ListLectures() {
			if other.ID == lecture.ID || other.ClassroomID != lecture.ClassroomID {
				continue
			}
			if lecture.Time.Overlaps(other.Time, cal) {
				res.Violations = append(res.Violations, blocking(r.Name(), domain.KindRoomConflict, domain.EntityLecture, lecture.ID,
					fmt.Sprintf("lecture %d overlaps lecture %d in classroom %d", lecture.ID, other.ID, lecture.ClassroomID)))
			}
		}
	}
	return res, nil
}

// NewSchoolConflictRule returns the rule forbidding a school from attending
// two overlapping lectures.
func NewSchoolConflictRule() domain.Rule {
	return schoolConflictRule{}
}

type schoolConflictRule struct{}

func (schoolConflictRule) Name() string { return "school_conflict" }

func (r schoolConflictRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	cal := view.Calendar()
	proposed := newProposedView(view, changes)
	for _, lecture := range proposedLectures(changes) {
		for _, other := range proposed.ListLectures() {
			if other.ID == lecture.ID || !lecture.SharesSchool(other) {
				continue
			}
			if lecture.Time.Overlaps(other.Time, cal) {
				res.Violations = append(res.Violations, blocking(r.Name(), domain.KindSchoolConflict, domain.EntityLecture, lecture.ID,
					fmt.Sprintf("lecture %d overlaps lecture %d attended by a shared school", lecture.ID, other.ID)))
			}
		}
	}
	return res, nil
}
