package core

import (
	"context"
	"errors"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"timetable/pkg/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns fn().
func (fn ClockFunc) Now() time.Time { return fn() }

// ErrorSink receives every failed facade operation.
type ErrorSink func(ctx context.Context, operation string, err error)

// Option customises a Schedule.
type Option func(*Schedule)

// WithClock overrides the clock used for operation timing and, for
// NewInMemorySchedule, record timestamps.
func WithClock(clock Clock) Option {
	return func(s *Schedule) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Schedule) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorSink replaces the default log-backed error sink.
func WithErrorSink(sink ErrorSink) Option {
	return func(s *Schedule) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithMetrics sets the recorder observing every operation.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(s *Schedule) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the tracer wrapping every operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Schedule) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// Schedule is the single entry point for timetable mutations and reads.
// Every mutation is validated in full before anything is committed.
type Schedule struct {
	store   domain.PersistentStore
	logger  *zap.Logger
	sink    ErrorSink
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// NewSchedule constructs a facade over the supplied store.
func NewSchedule(store domain.PersistentStore, opts ...Option) *Schedule {
	s := &Schedule{
		store:   store,
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	if s.sink == nil {
		s.sink = NewLogErrorSink(s.logger)
	}
	return s
}

// NewInMemorySchedule creates a facade and in-memory store with the default
// rules engine and the given calendar.
func NewInMemorySchedule(cal domain.Calendar, opts ...Option) *Schedule {
	s := NewSchedule(nil, opts...)
	s.store = NewMemoryStore(nil, WithSameDayPolicy(cal.Policy), WithLocation(cal.Location), WithStoreClock(s.clock))
	return s
}

// Store returns the underlying storage implementation.
func (s *Schedule) Store() domain.PersistentStore {
	return s.store
}

// defaultLogger writes warnings and above to stderr.
func defaultLogger() *zap.Logger {
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zapcore.WarnLevel)
	return zap.New(core)
}

// NewLogErrorSink returns a sink that logs failures at warn level.
func NewLogErrorSink(logger *zap.Logger) ErrorSink {
	return func(_ context.Context, operation string, err error) {
		fields := []zap.Field{zap.String("operation", operation), zap.Error(err)}
		var derr *domain.Error
		if errors.As(err, &derr) {
			fields = append(fields, zap.String("kind", string(derr.Kind)))
			if subject := derr.Subject(); subject != "" {
				fields = append(fields, zap.String("subject", subject))
			}
		}
		logger.Warn("schedule operation failed", fields...)
	}
}

// run wraps an operation with tracing, metrics and error reporting. Rule
// violations are flattened to the first blocking *domain.Error.
func (s *Schedule) run(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	err := fn(ctx)
	if err != nil {
		err = flatten(err)
	}
	s.metrics.Observe(ctx, operation, err == nil, s.clock.Now().Sub(started))
	span.End(err)
	if err != nil {
		s.sink(ctx, operation, err)
		return err
	}
	s.logger.Debug("schedule operation committed", zap.String("operation", operation))
	return nil
}

func flatten(err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	return err
}

func (s *Schedule) mutate(ctx context.Context, fn func(tx domain.Transaction) error) error {
	res, err := s.store.RunInTransaction(ctx, fn)
	if err != nil {
		return err
	}
	for _, v := range res.Violations {
		fields := []zap.Field{
			zap.String("rule", v.Rule),
			zap.String("kind", string(v.Kind)),
			zap.String("message", v.Message),
		}
		if subject := v.Err().Subject(); subject != "" {
			fields = append(fields, zap.String("subject", subject))
		}
		switch v.Severity {
		case domain.SeverityWarn:
			s.logger.Warn("rule warning", fields...)
		case domain.SeverityLog:
			s.logger.Info("rule notice", fields...)
		}
	}
	return nil
}

func requireID(entity domain.EntityType, id int) error {
	if id <= 0 {
		return &domain.Error{Kind: domain.KindInvalidArgument, Message: string(entity) + " id is required", Entity: entity, ID: id}
	}
	return nil
}

// Schools ---------------------------------------------------------------------

// CreateSchool persists a new school and returns it with its assigned id.
func (s *Schedule) CreateSchool(ctx context.Context, school domain.School) (domain.School, error) {
	var created domain.School
	err := s.run(ctx, "create_school", func(ctx context.Context) error {
		return s.mutate(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateSchool(school)
			return err
		})
	})
	if err != nil {
		return domain.School{}, err
	}
	s.logger.Debug("school created", zap.Int("id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// School returns the school with the given id.
func (s *Schedule) School(ctx context.Context, id int) (domain.School, error) {
	var school domain.School
	err := s.run(ctx, "get_school", func(context.Context) error {
		if err := requireID(domain.EntitySchool, id); err != nil {
			return err
		}
		var ok bool
		if school, ok = s.store.GetSchool(id); !ok {
			return domain.NotFound(domain.EntitySchool, id)
		}
		return nil
	})
	return school, err
}

// Schools returns every school ordered by id.
func (s *Schedule) Schools() []domain.School {
	return s.store.ListSchools()
}

// RenameSchool changes a school's name.
func (s *Schedule) RenameSchool(ctx context.Context, id int, name string) error {
	return s.updateSchool(ctx, "change_school_name", id, func(sc *domain.School) { sc.Name = name })
}

// ChangeSchoolAmount changes a school's attendee count. Every lecture the
// school attends is re-checked against its classroom capacity.
func (s *Schedule) ChangeSchoolAmount(ctx context.Context, id, amount int) error {
	return s.updateSchool(ctx, "change_school_amount", id, func(sc *domain.School) { sc.Amount = amount })
}

func (s *Schedule) updateSchool(ctx context.Context, operation string, id int, apply func(*domain.School)) error {
	return s.run(ctx, operation, func(ctx context.Context) error {
		if err := requireID(domain.EntitySchool, id); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpdateSchool(id, func(sc *domain.School) error {
				apply(sc)
				return nil
			})
			return err
		})
	})
}

// DeleteSchool removes a school no lecture references.
func (s *Schedule) DeleteSchool(ctx context.Context, id int) error {
	return s.run(ctx, "delete_school", func(ctx context.Context) error {
		if err := requireID(domain.EntitySchool, id); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx domain.Transaction) error {
			return tx.DeleteSchool(id)
		})
	})
}

// SchoolLectures returns the lectures a school attends ordered by start time.
func (s *Schedule) SchoolLectures(ctx context.Context, id int) ([]domain.Lecture, error) {
	return s.schoolLectures(ctx, "get_school_lectures", id, nil)
}

// SchoolLecturesWithin returns the school's lectures contained in interval, bounds inclusive.
func (s *Schedule) SchoolLecturesWithin(ctx context.Context, id int, interval domain.TimeRange) ([]domain.Lecture, error) {
	return s.schoolLectures(ctx, "get_school_lectures_within", id, &interval)
}

func (s *Schedule) schoolLectures(ctx context.Context, operation string, id int, interval *domain.TimeRange) ([]domain.Lecture, error) {
	var out []domain.Lecture
	err := s.run(ctx, operation, func(ctx context.Context) error {
		if err := requireID(domain.EntitySchool, id); err != nil {
			return err
		}
		if err := checkInterval(interval); err != nil {
			return err
		}
		return s.store.View(ctx, func(view domain.TransactionView) error {
			school, ok := view.FindSchool(id)
			if !ok {
				return domain.NotFound(domain.EntitySchool, id)
			}
			out = resolveLectures(view, school.LectureIDs, interval)
			return nil
		})
	})
	return out, err
}

// Classrooms ------------------------------------------------------------------

// CreateClassroom persists a new classroom and returns it with its assigned id.
func (s *Schedule) CreateClassroom(ctx context.Context, classroom domain.Classroom) (domain.Classroom, error) {
	var created domain.Classroom
	err := s.run(ctx, "create_classroom", func(ctx context.Context) error {
		return s.mutate(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateClassroom(classroom)
			return err
		})
	})
	if err != nil {
		return domain.Classroom{}, err
	}
	s.logger.Debug("classroom created", zap.Int("id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// Classroom returns the classroom with the given id.
func (s *Schedule) Classroom(ctx context.Context, id int) (domain.Classroom, error) {
	var classroom domain.Classroom
	err := s.run(ctx, "get_classroom", func(context.Context) error {
		if err := requireID(domain.EntityClassroom, id); err != nil {
			return err
		}
		var ok bool
		if classroom, ok = s.store.GetClassroom(id); !ok {
			return domain.NotFound(domain.EntityClassroom, id)
		}
		return nil
	})
	return classroom, err
}

// Classrooms returns every classroom ordered by id.
func (s *Schedule) Classrooms() []domain.Classroom {
	return s.store.ListClassrooms()
}

// RenameClassroom changes a classroom's name.
func (s *Schedule) RenameClassroom(ctx context.Context, id int, name string) error {
	return s.updateClassroom(ctx, "change_classroom_name", id, func(c *domain.Classroom) { c.Name = name })
}

// ChangeClassroomCapacity changes a classroom's capacity. Every lecture held
// in the room is re-checked against the new value.
func (s *Schedule) ChangeClassroomCapacity(ctx context.Context, id, capacity int) error {
	return s.updateClassroom(ctx, "change_classroom_capacity", id, func(c *domain.Classroom) { c.Capacity = capacity })
}

// ChangeClassroomDescription replaces a classroom's free-text description.
func (s *Schedule) ChangeClassroomDescription(ctx context.Context, id int, description string) error {
	return s.updateClassroom(ctx, "change_classroom_description", id, func(c *domain.Classroom) { c.Description = description })
}

func (s *Schedule) updateClassroom(ctx context.Context, operation string, id int, apply func(*domain.Classroom)) error {
	return s.run(ctx, operation, func(ctx context.Context) error {
		if err := requireID(domain.EntityClassroom, id); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpdateClassroom(id, func(c *domain.Classroom) error {
				apply(c)
				return nil
			})
			return err
		})
	})
}

// DeleteClassroom removes a classroom no lecture references.
func (s *Schedule) DeleteClassroom(ctx context.Context, id int) error {
	return s.run(ctx, "delete_classroom", func(ctx context.Context) error {
		if err := requireID(domain.EntityClassroom, id); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx domain.Transaction) error {
			return tx.DeleteClassroom(id)
		})
	})
}

// ClassroomLectures returns the lectures held in a classroom ordered by start time.
func (s *Schedule) ClassroomLectures(ctx context.Context, id int) ([]domain.Lecture, error) {
	return s.classroomLectures(ctx, "get_classroom_lectures", id, nil)
}

// ClassroomLecturesWithin returns the classroom's lectures contained in interval, bounds inclusive.
func (s *Schedule) ClassroomLecturesWithin(ctx context.Context, id int, interval domain.TimeRange) ([]domain.Lecture, error) {
	return s.classroomLectures(ctx, "get_classroom_lectures_within", id, &interval)
}

func (s *Schedule) classroomLectures(ctx context.Context, operation string, id int, interval *domain.TimeRange) ([]domain.Lecture, error) {
	var out []domain.Lecture
	err := s.run(ctx, operation, func(ctx context.Context) error {
		if err := requireID(domain.EntityClassroom, id); err != nil {
			return err
		}
		if err := checkInterval(interval); err != nil {
			return err
		}
		return s.store.View(ctx, func(view domain.TransactionView) error {
			classroom, ok := view.FindClassroom(id)
			if !ok {
				return domain.NotFound(domain.EntityClassroom, id)
			}
			out = resolveLectures(view, classroom.LectureIDs, interval)
			return nil
		})
	})
	return out, err
}

// Lectures --------------------------------------------------------------------

// CreateLecture validates and persists a lecture, linking it to its
// classroom and schools.
func (s *Schedule) CreateLecture(ctx context.Context, lecture domain.Lecture) (domain.Lecture, error) {
	var created domain.Lecture
	err := s.run(ctx, "create_lecture", func(ctx context.Context) error {
		return s.mutate(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateLecture(lecture)
			return err
		})
	})
	if err != nil {
		return domain.Lecture{}, err
	}
	s.logger.Debug("lecture created",
		zap.Int("id", created.ID),
		zap.Int("classroom_id", created.ClassroomID),
		zap.Ints("school_ids", created.SchoolIDs))
	return created, nil
}

// Lecture returns the lecture with the given id.
func (s *Schedule) Lecture(ctx context.Context, id int) (domain.Lecture, error) {
	var lecture domain.Lecture
	err := s.run(ctx, "get_lecture", func(context.Context) error {
		if err := requireID(domain.EntityLecture, id); err != nil {
			return err
		}
		var ok bool
		if lecture, ok = s.store.GetLecture(id); !ok {
			return domain.NotFound(domain.EntityLecture, id)
		}
		return nil
	})
	return lecture, err
}

// Lectures returns every lecture ordered by start time.
func (s *Schedule) Lectures() []domain.Lecture {
	out := s.store.ListLectures()
	sortByStart(out)
	return out
}

// RenameLecture changes a lecture's name.
func (s *Schedule) RenameLecture(ctx context.Context, id int, name string) error {
	return s.updateLecture(ctx, "change_lecture_name", id, func(l *domain.Lecture) { l.Name = name })
}

// ChangeLecturer changes who delivers a lecture.
func (s *Schedule) ChangeLecturer(ctx context.Context, id int, lecturer string) error {
	return s.updateLecture(ctx, "change_lecture_lecturer", id, func(l *domain.Lecture) { l.Lecturer = lecturer })
}

// RescheduleLecture moves a lecture to a new time range.
func (s *Schedule) RescheduleLecture(ctx context.Context, id int, when domain.TimeRange) error {
	return s.updateLecture(ctx, "change_lecture_time", id, func(l *domain.Lecture) { l.Time = when })
}

// MoveLecture moves a lecture to another classroom.
func (s *Schedule) MoveLecture(ctx context.Context, id, classroomID int) error {
	return s.updateLecture(ctx, "change_lecture_classroom", id, func(l *domain.Lecture) { l.ClassroomID = classroomID })
}

// ChangeLectureSchools replaces the set of schools attending a lecture.
// Schools dropped from the set lose the lecture from their back-references.
func (s *Schedule) ChangeLectureSchools(ctx context.Context, id int, schoolIDs []int) error {
	ids := append([]int(nil), schoolIDs...)
	return s.updateLecture(ctx, "change_lecture_schools", id, func(l *domain.Lecture) { l.SchoolIDs = ids })
}

func (s *Schedule) updateLecture(ctx context.Context, operation string, id int, apply func(*domain.Lecture)) error {
	return s.run(ctx, operation, func(ctx context.Context) error {
		if err := requireID(domain.EntityLecture, id); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpdateLecture(id, func(l *domain.Lecture) error {
				apply(l)
				return nil
			})
			return err
		})
	})
}

// DeleteLecture unlinks a lecture from its classroom and schools and removes it.
func (s *Schedule) DeleteLecture(ctx context.Context, id int) error {
	return s.run(ctx, "delete_lecture", func(ctx context.Context) error {
		if err := requireID(domain.EntityLecture, id); err != nil {
			return err
		}
		return s.mutate(ctx, func(tx domain.Transaction) error {
			return tx.DeleteLecture(id)
		})
	})
}

func checkInterval(interval *domain.TimeRange) error {
	if interval == nil {
		return nil
	}
	if interval.Start.IsZero() || interval.End.IsZero() {
		return domain.Errorf(domain.KindInvalidArgument, "interval requires both start and end")
	}
	if interval.End.Before(interval.Start) {
		return domain.Errorf(domain.KindTimeRangeInvalid, "interval %s ends before it starts", interval)
	}
	return nil
}

func resolveLectures(view domain.TransactionView, ids []int, interval *domain.TimeRange) []domain.Lecture {
	out := make([]domain.Lecture, 0, len(ids))
	for _, id := range ids {
		lecture, ok := view.FindLecture(id)
		if !ok {
			continue
		}
		if interval != nil && !lecture.Time.Within(*interval) {
			continue
		}
		out = append(out, lecture)
	}
	sortByStart(out)
	return out
}

func sortByStart(lectures []domain.Lecture) {
	sort.SliceStable(lectures, func(i, j int) bool {
		a, b := lectures[i], lectures[j]
		if !a.Time.Start.Equal(b.Time.Start) {
			return a.Time.Start.Before(b.Time.Start)
		}
		return a.ID < b.ID
	})
}
