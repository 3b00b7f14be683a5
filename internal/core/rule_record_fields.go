package core

import (
	"context"
	"fmt"
	"strings"

	"timetable/pkg/domain"
)

const recordFieldsRuleName = "record_fields"

// NewRecordFieldsRule returns the rule rejecting missing or non-positive fields.
func NewRecordFieldsRule() domain.Rule {
	return recordFieldsRule{}
}

type recordFieldsRule struct{}

func (recordFieldsRule) Name() string { return recordFieldsRuleName }

func (recordFieldsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.After == nil {
			continue
		}
		switch rec := change.After.(type) {
		case domain.School:
			if msg := schoolFieldProblem(rec); msg != "" {
				res.Violations = append(res.Violations, invalidField(domain.EntitySchool, rec.ID, msg))
			}
		case domain.Classroom:
			if msg := classroomFieldProblem(rec); msg != "" {
				res.Violations = append(res.Violations, invalidField(domain.EntityClassroom, rec.ID, msg))
			}
		case domain.Lecture:
			if msg := lectureFieldProblem(rec); msg != "" {
				res.Violations = append(res.Violations, invalidField(domain.EntityLecture, rec.ID, msg))
			}
		}
	}
	return res, nil
}

func invalidField(entity domain.EntityType, id int, msg string) domain.Violation {
	return blocking(recordFieldsRuleName, domain.KindInvalidArgument, entity, id, fmt.Sprintf("%s %d: %s", entity, id, msg))
}

func schoolFieldProblem(s domain.School) string {
	switch {
	case strings.TrimSpace(s.Name) == "":
		return "name is required"
	case s.Amount <= 0:
		return fmt.Sprintf("amount must be a positive integer, got %d", s.Amount)
	}
	return ""
}

func classroomFieldProblem(c domain.Classroom) string {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return "name is required"
	case c.Capacity <= 0:
		return fmt.Sprintf("capacity must be a positive integer, got %d", c.Capacity)
	}
	return ""
}

func lectureFieldProblem(l domain.Lecture) string {
	switch {
	case strings.TrimSpace(l.Name) == "":
		return "name is required"
	case strings.TrimSpace(l.Lecturer) == "":
		return "lecturer is required"
	case l.Time.Start.IsZero() || l.Time.End.IsZero():
		return "time requires both start and end"
	case l.ClassroomID <= 0:
		return "classroom id is required"
	case len(l.SchoolIDs) == 0:
		return "at least one school id is required"
	}
	seen := make(map[int]struct{}, len(l.SchoolIDs))
	for _, id := range l.SchoolIDs {
		if id <= 0 {
			return fmt.Sprintf("school id must be positive, got %d", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Sprintf("school %d listed more than once", id)
		}
		seen[id] = struct{}{}
	}
	return ""
}
