package core

import (
	"context"

	"timetable/pkg/domain"
)

// ChangeRequest names the single field a Change call mutates.
type ChangeRequest string

// Field selectors accepted by Change.
const (
	RequestName        ChangeRequest = "name"
	RequestAmount      ChangeRequest = "amount"
	RequestCapacity    ChangeRequest = "capacity"
	RequestDescription ChangeRequest = "description"
	RequestTime        ChangeRequest = "time"
	RequestClassroomID ChangeRequest = "classroomId"
	RequestSchoolIDs   ChangeRequest = "schoolsId"
	RequestLecturer    ChangeRequest = "lecturer"
)

// GetView selects the projection returned by Get.
type GetView string

// Projections accepted by Get. The zero value selects ViewEntity.
const (
	ViewEntity   GetView = "entity"
	ViewLectures GetView = "lectures"
	ViewInterval GetView = "interval"
)

// Options is the request bag shared by Create, Get, Change and Delete.
// Which fields are read depends on the entity type and request.
type Options struct {
	ID          int              `json:"id,omitempty"`
	Name        string           `json:"name,omitempty"`
	Amount      int              `json:"amount,omitempty"`
	Capacity    int              `json:"capacity,omitempty"`
	Description string           `json:"description,omitempty"`
	Lecturer    string           `json:"lecturer,omitempty"`
	Time        domain.TimeRange `json:"time,omitzero"`
	ClassroomID int              `json:"classroomId,omitempty"`
	SchoolIDs   []int            `json:"schoolsId,omitempty"`
	Request     ChangeRequest    `json:"request,omitempty"`
	View        GetView          `json:"view,omitempty"`
	Interval    domain.TimeRange `json:"interval,omitzero"`
}

// Projection is the result of a Get call. Exactly one of the entity pointers
// is set for ViewEntity; Lectures is set for the lecture views.
type Projection struct {
	Entity    domain.EntityType
	School    *domain.School
	Classroom *domain.Classroom
	Lecture   *domain.Lecture
	Lectures  []domain.Lecture
}

// Create builds a record of the given type from opts and returns its id.
func (s *Schedule) Create(ctx context.Context, entity domain.EntityType, opts Options) (int, error) {
	switch entity {
	case domain.EntitySchool:
		created, err := s.CreateSchool(ctx, domain.School{Name: opts.Name, Amount: opts.Amount})
		return created.ID, err
	case domain.EntityClassroom:
		created, err := s.CreateClassroom(ctx, domain.Classroom{Name: opts.Name, Capacity: opts.Capacity, Description: opts.Description})
		return created.ID, err
	case domain.EntityLecture:
		created, err := s.CreateLecture(ctx, domain.Lecture{
			Name:        opts.Name,
			Lecturer:    opts.Lecturer,
			Time:        opts.Time,
			ClassroomID: opts.ClassroomID,
			SchoolIDs:   opts.SchoolIDs,
		})
		return created.ID, err
	default:
		return 0, s.reject(ctx, "create", unknownEntity(entity))
	}
}

// Get returns a read-only projection. It never mutates the store.
func (s *Schedule) Get(ctx context.Context, entity domain.EntityType, opts Options) (Projection, error) {
	out := Projection{Entity: entity}
	view := opts.View
	if view == "" {
		view = ViewEntity
	}
	var err error
	switch {
	case view == ViewEntity && entity == domain.EntitySchool:
		var school domain.School
		if school, err = s.School(ctx, opts.ID); err == nil {
			out.School = &school
		}
	case view == ViewEntity && entity == domain.EntityClassroom:
		var classroom domain.Classroom
		if classroom, err = s.Classroom(ctx, opts.ID); err == nil {
			out.Classroom = &classroom
		}
	case view == ViewEntity && entity == domain.EntityLecture:
		var lecture domain.Lecture
		if lecture, err = s.Lecture(ctx, opts.ID); err == nil {
			out.Lecture = &lecture
		}
	case view == ViewLectures && entity == domain.EntitySchool:
		out.Lectures, err = s.SchoolLectures(ctx, opts.ID)
	case view == ViewLectures && entity == domain.EntityClassroom:
		out.Lectures, err = s.ClassroomLectures(ctx, opts.ID)
	case view == ViewLectures && entity == domain.EntityLecture:
		out.Lectures = s.Lectures()
	case view == ViewInterval && entity == domain.EntitySchool:
		out.Lectures, err = s.SchoolLecturesWithin(ctx, opts.ID, opts.Interval)
	case view == ViewInterval && entity == domain.EntityClassroom:
		out.Lectures, err = s.ClassroomLecturesWithin(ctx, opts.ID, opts.Interval)
	default:
		if !knownEntity(entity) {
			return Projection{}, s.reject(ctx, "get", unknownEntity(entity))
		}
		return Projection{}, s.reject(ctx, "get", domain.Errorf(domain.KindInvalidArgument, "view %q is not available for %s", view, entity))
	}
	if err != nil {
		return Projection{}, err
	}
	return out, nil
}

// Change mutates the single field named by opts.Request.
func (s *Schedule) Change(ctx context.Context, entity domain.EntityType, opts Options) error {
	switch entity {
	case domain.EntitySchool:
		switch opts.Request {
		case RequestName:
			return s.RenameSchool(ctx, opts.ID, opts.Name)
		case RequestAmount:
			return s.ChangeSchoolAmount(ctx, opts.ID, opts.Amount)
		}
	case domain.EntityClassroom:
		switch opts.Request {
		case RequestName:
			return s.RenameClassroom(ctx, opts.ID, opts.Name)
		case RequestCapacity:
			return s.ChangeClassroomCapacity(ctx, opts.ID, opts.Capacity)
		case RequestDescription:
			return s.ChangeClassroomDescription(ctx, opts.ID, opts.Description)
		}
	case domain.EntityLecture:
		switch opts.Request {
		case RequestName:
			return s.RenameLecture(ctx, opts.ID, opts.Name)
		case RequestLecturer:
			return s.ChangeLecturer(ctx, opts.ID, opts.Lecturer)
		case RequestTime:
			return s.RescheduleLecture(ctx, opts.ID, opts.Time)
		case RequestClassroomID:
			return s.MoveLecture(ctx, opts.ID, opts.ClassroomID)
		case RequestSchoolIDs:
			return s.ChangeLectureSchools(ctx, opts.ID, opts.SchoolIDs)
		}
	default:
		return s.reject(ctx, "change", unknownEntity(entity))
	}
	return s.reject(ctx, "change", domain.Errorf(domain.KindInvalidArgument, "request %q is not available for %s", opts.Request, entity))
}

// Delete removes the record with opts.ID.
func (s *Schedule) Delete(ctx context.Context, entity domain.EntityType, opts Options) error {
	switch entity {
	case domain.EntitySchool:
		return s.DeleteSchool(ctx, opts.ID)
	case domain.EntityClassroom:
		return s.DeleteClassroom(ctx, opts.ID)
	case domain.EntityLecture:
		return s.DeleteLecture(ctx, opts.ID)
	default:
		return s.reject(ctx, "delete", unknownEntity(entity))
	}
}

// reject reports a request that failed before reaching an operation.
func (s *Schedule) reject(ctx context.Context, verb string, err error) error {
	return s.run(ctx, verb, func(context.Context) error { return err })
}

func knownEntity(entity domain.EntityType) bool {
	_, err := domain.ParseEntityType(string(entity))
	return err == nil
}

func unknownEntity(entity domain.EntityType) error {
	_, err := domain.ParseEntityType(string(entity))
	return err
}
