// Package domain defines the timetable entities, value types, and rule
// evaluation primitives used by the scheduling core.
package domain

import "time"

// EntityType identifies the type of record stored in the timetable.
type EntityType string

// Supported entity type identifiers used in Change records and facade requests.
const (
	// EntitySchool identifies a cohort record.
	EntitySchool EntityType = "school"
	// EntityClassroom identifies a room record.
	EntityClassroom EntityType = "classroom"
	// EntityLecture identifies a scheduled lecture record.
	EntityLecture EntityType = "lecture"
)

// ParseEntityType converts a caller supplied tag into an EntityType.
func ParseEntityType(tag string) (EntityType, error) {
	switch EntityType(tag) {
	case EntitySchool, EntityClassroom, EntityLecture:
		return EntityType(tag), nil
	default:
		return "", Errorf(KindInvalidArgument, "unknown entity type %q", tag)
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging. The
// built-in rules only block; rules registered on top of them may report the
// other severities, which the schedule logs after commit.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	// SeverityLog logs at info level and allows commit.
	SeverityLog Severity = "log"
)

// Base contains common fields for all timetable records.
type Base struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// School is a cohort with a fixed attendee count enrolled in lectures.
type School struct {
	Base
	Name       string `json:"name"`
	Amount     int    `json:"amount"`
	LectureIDs []int  `json:"lecture_ids"`
}

// Classroom is a room with a fixed seating capacity.
type Classroom struct {
	Base
	Name        string `json:"name"`
	Capacity    int    `json:"capacity"`
	Description string `json:"description"`
	LectureIDs  []int  `json:"lecture_ids"`
}

// Lecture is a scheduled event held in one classroom for one or more schools.
type Lecture struct {
	Base
	Name        string    `json:"name"`
	Lecturer    string    `json:"lecturer"`
	Time        TimeRange `json:"time"`
	ClassroomID int       `json:"classroom_id"`
	SchoolIDs   []int     `json:"school_ids"`
}

// AttendedBy reports whether the lecture lists the school.
func (l Lecture) AttendedBy(schoolID int) bool {
	for _, id := range l.SchoolIDs {
		if id == schoolID {
			return true
		}
	}
	return false
}

// SharesSchool reports whether both lectures list at least one common school.
func (l Lecture) SharesSchool(other Lecture) bool {
	for _, id := range other.SchoolIDs {
		if l.AttendedBy(id) {
			return true
		}
	}
	return false
}

// CloneSchool returns a copy of s that shares no slices with it.
func CloneSchool(s School) School {
	cp := s
	cp.LectureIDs = cloneIDs(s.LectureIDs)
	return cp
}

// CloneClassroom returns a copy of c that shares no slices with it.
func CloneClassroom(c Classroom) Classroom {
	cp := c
	cp.LectureIDs = cloneIDs(c.LectureIDs)
	return cp
}

// CloneLecture returns a copy of l that shares no slices with it.
func CloneLecture(l Lecture) Lecture {
	cp := l
	cp.SchoolIDs = cloneIDs(l.SchoolIDs)
	return cp
}

func cloneIDs(ids []int) []int {
	if ids == nil {
		return nil
	}
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

// Action describes the type of mutation applied to a record.
type Action string

// Supported transaction actions recorded in Change entries.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a proposed mutation handed to the rules engine.
// Before is nil for creates and After is nil for deletes.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Violation represents a rule violation.
type Violation struct {
	Rule     string
	Severity Severity
	Kind     ErrorKind
	Message  string
	Entity   EntityType
	EntityID int
}

// Err converts the violation into a typed error.
func (v Violation) Err() *Error {
	return &Error{Kind: v.Kind, Message: v.Message, Entity: v.Entity, ID: v.EntityID}
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	_, ok := r.FirstBlocking()
	return ok
}

// FirstBlocking returns the earliest blocking violation in evaluation order.
func (r Result) FirstBlocking() (Violation, bool) {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return v, true
		}
	}
	return Violation{}, false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if v, ok := e.Result.FirstBlocking(); ok {
		return "transaction blocked by " + v.Rule + ": " + v.Message
	}
	return "transaction blocked by rules"
}

// Unwrap exposes the first blocking violation as a typed error.
func (e RuleViolationError) Unwrap() error {
	if v, ok := e.Result.FirstBlocking(); ok {
		return v.Err()
	}
	return nil
}
