package core

import (
	"context"
	"fmt"

	"timetable/pkg/domain"
)

// NewLectureTimeRangeRule returns the rule requiring start < end on a single day.
func NewLectureTimeRangeRule() domain.Rule {
	return lectureTimeRangeRule{}
}

type lectureTimeRangeRule struct{}

func (lectureTimeRangeRule) Name() string { return "lecture_time_range" }

func (r lectureTimeRangeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	cal := view.Calendar()
	for _, lecture := range proposedLectures(changes) {
		if lecture.Time.Valid(cal) {
			continue
		}
		reason := "start must precede end"
		if lecture.Time.Start.Before(lecture.Time.End) {
			reason = "start and end fall on different days"
		}
		res.Violations = append(res.Violations, blocking(r.Name(), domain.KindTimeRangeInvalid, domain.EntityLecture, lecture.ID,
			fmt.Sprintf("lecture %d time %s: %s", lecture.ID, lecture.Time, reason)))
	}
	return res, nil
}
