package domain

import "context"

// Transaction exposes the timetable operations a store must support within
// an atomic scope. Mutations are checked by the rules engine before they are
// written; a returned error leaves the transaction state unchanged.
type Transaction interface {
	Snapshot() TransactionView
	CreateSchool(School) (School, error)
	UpdateSchool(id int, mutator func(*School) error) (School, error)
	DeleteSchool(id int) error
	CreateClassroom(Classroom) (Classroom, error)
	UpdateClassroom(id int, mutator func(*Classroom) error) (Classroom, error)
	DeleteClassroom(id int) error
	CreateLecture(Lecture) (Lecture, error)
	UpdateLecture(id int, mutator func(*Lecture) error) (Lecture, error)
	DeleteLecture(id int) error
	FindSchool(id int) (School, bool)
	FindClassroom(id int) (Classroom, bool)
	FindLecture(id int) (Lecture, bool)
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
}

// PersistentStore abstracts the store capabilities used by the facade.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetSchool(id int) (School, bool)
	GetClassroom(id int) (Classroom, bool)
	GetLecture(id int) (Lecture, bool)
	ListSchools() []School
	ListClassrooms() []Classroom
	ListLectures() []Lecture
}
