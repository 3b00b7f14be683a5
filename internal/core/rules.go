package core

import "timetable/pkg/domain"

// defaultRules lists the built-in rules in evaluation order. Field checks run
// first and referential checks precede relational ones, since a dangling
// reference makes conflict and capacity checks meaningless.
func defaultRules() []domain.Rule {
	return []domain.Rule{
		NewRecordFieldsRule(),
		NewLectureTimeRangeRule(),
		NewLectureReferencesRule(),
		NewClassroomConflictRule(),
		NewSchoolConflictRule(),
		NewClassroomCapacityRule(),
		NewReferentialBlockRule(),
	}
}

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *domain.RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	for _, rule := range defaultRules() {
		engine.Register(rule)
	}
	return engine
}

// proposedLectures returns the lecture records created or updated by changes.
func proposedLectures(changes []domain.Change) []domain.Lecture {
	var out []domain.Lecture
	for _, change := range changes {
		if change.Entity != domain.EntityLecture || change.After == nil {
			continue
		}
		if l, ok := change.After.(domain.Lecture); ok {
			out = append(out, l)
		}
	}
	return out
}

func blocking(rule string, kind domain.ErrorKind, entity domain.EntityType, id int, message string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Kind:     kind,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
