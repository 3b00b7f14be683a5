package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorKind classifies a failed timetable operation.
type ErrorKind string

// Error kinds surfaced by the facade. Every failure maps to exactly one kind.
const (
	KindInvalidArgument  ErrorKind = "invalid_argument"
	KindNotFound         ErrorKind = "not_found"
	KindTimeRangeInvalid ErrorKind = "time_range_invalid"
	KindRoomConflict     ErrorKind = "room_conflict"
	KindSchoolConflict   ErrorKind = "school_conflict"
	KindCapacityExceeded ErrorKind = "capacity_exceeded"
	KindReferentialBlock ErrorKind = "referential_block"
)

// Sentinel errors usable with errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrTimeRangeInvalid = &Error{Kind: KindTimeRangeInvalid}
	ErrRoomConflict     = &Error{Kind: KindRoomConflict}
	ErrSchoolConflict   = &Error{Kind: KindSchoolConflict}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded}
	ErrReferentialBlock = &Error{Kind: KindReferentialBlock}
)

// Error is the structured failure handed to callers and the error sink.
type Error struct {
	Kind    ErrorKind
	Message string
	Entity  EntityType
	ID      int
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds the error returned when a referenced id is absent.
func NotFound(entity EntityType, id int) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is matches errors of the same kind so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf extracts the ErrorKind from err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Subject renders "entity id" for log fields; empty when no entity is attached.
func (e *Error) Subject() string {
	if e.Entity == "" {
		return ""
	}
	return string(e.Entity) + " " + strconv.Itoa(e.ID)
}
