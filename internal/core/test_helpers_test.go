package core

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"timetable/pkg/domain"
)

var testNow = time.Date(2017, 1, 15, 9, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return testNow })
}

// newTestSchedule returns an in-memory schedule with a silent logger and a fixed clock.
func newTestSchedule(t *testing.T, opts ...Option) *Schedule {
	t.Helper()
	base := []Option{WithLogger(zap.NewNop()), WithClock(fixedClock())}
	return NewInMemorySchedule(domain.NewCalendar(domain.SameDayCalendarDate, time.UTC), append(base, opts...)...)
}

// hours builds a range on 2017-02-<day> from startHour to endHour UTC.
func hours(day, startHour, endHour int) domain.TimeRange {
	return domain.NewTimeRange(
		time.Date(2017, 2, day, startHour, 0, 0, 0, time.UTC),
		time.Date(2017, 2, day, endHour, 0, 0, 0, time.UTC),
	)
}

func mustSchool(t *testing.T, s *Schedule, name string, amount int) domain.School {
	t.Helper()
	school, err := s.CreateSchool(context.Background(), domain.School{Name: name, Amount: amount})
	if err != nil {
		t.Fatalf("create school %s: %v", name, err)
	}
	return school
}

func mustClassroom(t *testing.T, s *Schedule, name string, capacity int) domain.Classroom {
	t.Helper()
	classroom, err := s.CreateClassroom(context.Background(), domain.Classroom{Name: name, Capacity: capacity})
	if err != nil {
		t.Fatalf("create classroom %s: %v", name, err)
	}
	return classroom
}

func lecture(name string, when domain.TimeRange, classroomID int, schoolIDs ...int) domain.Lecture {
	return domain.Lecture{Name: name, Lecturer: "Lecturer", Time: when, ClassroomID: classroomID, SchoolIDs: schoolIDs}
}

func mustLecture(t *testing.T, s *Schedule, l domain.Lecture) domain.Lecture {
	t.Helper()
	created, err := s.CreateLecture(context.Background(), l)
	if err != nil {
		t.Fatalf("create lecture %s: %v", l.Name, err)
	}
	return created
}

func expectKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := domain.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

// assertBackReferences checks that every lecture is listed by its classroom
// and schools, and that every listed lecture references its owner.
func assertBackReferences(t *testing.T, store domain.PersistentStore) {
	t.Helper()
	lectures := make(map[int]domain.Lecture)
	for _, l := range store.ListLectures() {
		lectures[l.ID] = l
	}
	contains := func(ids []int, id int) bool {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	for _, l := range lectures {
		classroom, ok := store.GetClassroom(l.ClassroomID)
		if !ok || !contains(classroom.LectureIDs, l.ID) {
			t.Fatalf("classroom %d does not list lecture %d", l.ClassroomID, l.ID)
		}
		for _, sid := range l.SchoolIDs {
			school, ok := store.GetSchool(sid)
			if !ok || !contains(school.LectureIDs, l.ID) {
				t.Fatalf("school %d does not list lecture %d", sid, l.ID)
			}
		}
	}
	for _, c := range store.ListClassrooms() {
		for _, lid := range c.LectureIDs {
			if l, ok := lectures[lid]; !ok || l.ClassroomID != c.ID {
				t.Fatalf("classroom %d lists stale lecture %d", c.ID, lid)
			}
		}
	}
	for _, sc := range store.ListSchools() {
		for _, lid := range sc.LectureIDs {
			if l, ok := lectures[lid]; !ok || !l.AttendedBy(sc.ID) {
				t.Fatalf("school %d lists stale lecture %d", sc.ID, lid)
			}
		}
	}
}
