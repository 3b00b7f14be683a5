package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"timetable/pkg/domain"
)

type memoryState struct {
	schools    map[int]domain.School
	classrooms map[int]domain.Classroom
	lectures   map[int]domain.Lecture

	lastSchoolID    int
	lastClassroomID int
	lastLectureID   int
}

func newMemoryState() memoryState {
	return memoryState{
		schools:    make(map[int]domain.School),
		classrooms: make(map[int]domain.Classroom),
		lectures:   make(map[int]domain.Lecture),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.schools {
		cloned.schools[k] = domain.CloneSchool(v)
	}
	for k, v := range s.classrooms {
		cloned.classrooms[k] = domain.CloneClassroom(v)
	}
	for k, v := range s.lectures {
		cloned.lectures[k] = domain.CloneLecture(v)
	}
	cloned.lastSchoolID = s.lastSchoolID
	cloned.lastClassroomID = s.lastClassroomID
	cloned.lastLectureID = s.lastLectureID
	return cloned
}

// MemoryStore provides an in-memory transactional store for the timetable.
type MemoryStore struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	cal    domain.Calendar
	nowFn  func() time.Time
}

// StoreOption customises a MemoryStore.
type StoreOption func(*MemoryStore)

// WithSameDayPolicy selects the same-day test used by time range rules.
func WithSameDayPolicy(policy domain.SameDayPolicy) StoreOption {
	return func(s *MemoryStore) {
		if policy != "" {
			s.cal.Policy = policy
		}
	}
}

// WithLocation selects the location whose calendar decides same-day checks.
func WithLocation(loc *time.Location) StoreOption {
	return func(s *MemoryStore) {
		if loc != nil {
			s.cal.Location = loc
		}
	}
}

// WithStoreClock overrides the clock used to stamp CreatedAt/UpdatedAt.
func WithStoreClock(clock Clock) StoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.nowFn = clock.Now
		}
	}
}

// NewMemoryStore constructs an in-memory store backed by the provided rules engine.
// A nil engine selects the default rule set.
func NewMemoryStore(engine *domain.RulesEngine, opts ...StoreOption) *MemoryStore {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	s := &MemoryStore{
		state:  newMemoryState(),
		engine: engine,
		cal:    domain.NewCalendar(domain.SameDayCalendarDate, time.Local),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calendar returns the policy and location applied by time range rules.
func (s *MemoryStore) Calendar() domain.Calendar {
	return s.cal
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	ctx     context.Context
	store   *MemoryStore
	state   memoryState
	changes []domain.Change
	result  domain.Result
	now     time.Time
}

var _ domain.Transaction = (*Transaction)(nil)

// TransactionView exposes a read-only snapshot of the transactional state to rules.
type TransactionView struct {
	state *memoryState
	cal   domain.Calendar
}

var _ domain.TransactionView = TransactionView{}

func newTransactionView(state *memoryState, cal domain.Calendar) TransactionView {
	return TransactionView{state: state, cal: cal}
}

// Calendar returns the calendar the snapshot was taken with.
func (v TransactionView) Calendar() domain.Calendar { return v.cal }

// ListSchools returns all schools ordered by id.
func (v TransactionView) ListSchools() []domain.School {
	return listSchools(v.state)
}

// ListClassrooms returns all classrooms ordered by id.
func (v TransactionView) ListClassrooms() []domain.Classroom {
	return listClassrooms(v.state)
}

// ListLectures returns all lectures ordered by id.
func (v TransactionView) ListLectures() []domain.Lecture {
	return listLectures(v.state)
}

// FindSchool retrieves a school by id from the snapshot.
func (v TransactionView) FindSchool(id int) (domain.School, bool) {
	s, ok := v.state.schools[id]
	if !ok {
		return domain.School{}, false
	}
	return domain.CloneSchool(s), true
}

// FindClassroom retrieves a classroom by id from the snapshot.
func (v TransactionView) FindClassroom(id int) (domain.Classroom, bool) {
	c, ok := v.state.classrooms[id]
	if !ok {
		return domain.Classroom{}, false
	}
	return domain.CloneClassroom(c), true
}

// FindLecture retrieves a lecture by id from the snapshot.
func (v TransactionView) FindLecture(id int) (domain.Lecture, bool) {
	l, ok := v.state.lectures[id]
	if !ok {
		return domain.Lecture{}, false
	}
	return domain.CloneLecture(l), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn returns nil.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Result{}, err
	}

	tx := &Transaction{
		ctx:   ctx,
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return tx.result, err
	}

	s.state = tx.state
	return tx.result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *MemoryStore) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot, s.cal))
}

// Snapshot returns a read-only view of the in-flight transaction state.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state, tx.store.cal)
}

// Changes returns the mutations applied so far within the transaction.
func (tx *Transaction) Changes() []domain.Change {
	return append([]domain.Change(nil), tx.changes...)
}

// propose evaluates change against the current transaction state. Nothing
// is recorded when a rule blocks.
func (tx *Transaction) propose(change domain.Change) error {
	if tx.store.engine != nil {
		res, err := tx.store.engine.Evaluate(tx.ctx, tx.Snapshot(), []domain.Change{change})
		if err != nil {
			return err
		}
		if res.HasBlocking() {
			return domain.RuleViolationError{Result: res}
		}
		tx.result.Merge(res)
	}
	tx.changes = append(tx.changes, change)
	return nil
}

// nextID returns the id the next record of kind will receive. Ids are never reused.
func (tx *Transaction) nextID(kind domain.EntityType) int {
	switch kind {
	case domain.EntitySchool:
		return tx.state.lastSchoolID + 1
	case domain.EntityClassroom:
		return tx.state.lastClassroomID + 1
	case domain.EntityLecture:
		return tx.state.lastLectureID + 1
	default:
		panic(fmt.Sprintf("core: no id sequence for entity %q", kind))
	}
}

// CreateSchool stores a new school within the transaction.
func (tx *Transaction) CreateSchool(s domain.School) (domain.School, error) {
	s.ID = tx.nextID(domain.EntitySchool)
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	s.LectureIDs = []int{}
	if err := tx.propose(domain.Change{Entity: domain.EntitySchool, Action: domain.ActionCreate, After: domain.CloneSchool(s)}); err != nil {
		return domain.School{}, err
	}
	tx.state.schools[s.ID] = domain.CloneSchool(s)
	tx.state.lastSchoolID = s.ID
	return domain.CloneSchool(s), nil
}

// UpdateSchool mutates a school using the provided mutator function.
// The id and lecture back-references are store-owned and cannot be changed.
func (tx *Transaction) UpdateSchool(id int, mutator func(*domain.School) error) (domain.School, error) {
	current, ok := tx.state.schools[id]
	if !ok {
		return domain.School{}, domain.NotFound(domain.EntitySchool, id)
	}
	before := domain.CloneSchool(current)
	next := domain.CloneSchool(current)
	if err := mutator(&next); err != nil {
		return domain.School{}, err
	}
	next.Base = current.Base
	next.UpdatedAt = tx.now
	next.LectureIDs = current.LectureIDs
	if err := tx.propose(domain.Change{Entity: domain.EntitySchool, Action: domain.ActionUpdate, Before: before, After: domain.CloneSchool(next)}); err != nil {
		return domain.School{}, err
	}
	tx.state.schools[id] = domain.CloneSchool(next)
	return domain.CloneSchool(next), nil
}

// DeleteSchool removes a school from the transaction state.
func (tx *Transaction) DeleteSchool(id int) error {
	current, ok := tx.state.schools[id]
	if !ok {
		return domain.NotFound(domain.EntitySchool, id)
	}
	if err := tx.propose(domain.Change{Entity: domain.EntitySchool, Action: domain.ActionDelete, Before: domain.CloneSchool(current)}); err != nil {
		return err
	}
	delete(tx.state.schools, id)
	return nil
}

// CreateClassroom stores a new classroom.
func (tx *Transaction) CreateClassroom(c domain.Classroom) (domain.Classroom, error) {
	c.ID = tx.nextID(domain.EntityClassroom)
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	c.LectureIDs = []int{}
	if err := tx.propose(domain.Change{Entity: domain.EntityClassroom, Action: domain.ActionCreate, After: domain.CloneClassroom(c)}); err != nil {
		return domain.Classroom{}, err
	}
	tx.state.classrooms[c.ID] = domain.CloneClassroom(c)
	tx.state.lastClassroomID = c.ID
	return domain.CloneClassroom(c), nil
}

// UpdateClassroom mutates an existing classroom.
func (tx *Transaction) UpdateClassroom(id int, mutator func(*domain.Classroom) error) (domain.Classroom, error) {
	current, ok := tx.state.classrooms[id]
	if !ok {
		return domain.Classroom{}, domain.NotFound(domain.EntityClassroom, id)
	}
	before := domain.CloneClassroom(current)
	next := domain.CloneClassroom(current)
	if err := mutator(&next); err != nil {
		return domain.Classroom{}, err
	}
	next.Base = current.Base
	next.UpdatedAt = tx.now
	next.LectureIDs = current.LectureIDs
	if err := tx.propose(domain.Change{Entity: domain.EntityClassroom, Action: domain.ActionUpdate, Before: before, After: domain.CloneClassroom(next)}); err != nil {
		return domain.Classroom{}, err
	}
	tx.state.classrooms[id] = domain.CloneClassroom(next)
	return domain.CloneClassroom(next), nil
}

// DeleteClassroom removes a classroom.
func (tx *Transaction) DeleteClassroom(id int) error {
	current, ok := tx.state.classrooms[id]
	if !ok {
		return domain.NotFound(domain.EntityClassroom, id)
	}
	if err := tx.propose(domain.Change{Entity: domain.EntityClassroom, Action: domain.ActionDelete, Before: domain.CloneClassroom(current)}); err != nil {
		return err
	}
	delete(tx.state.classrooms, id)
	return nil
}

// CreateLecture stores a lecture and links it to its classroom and schools.
func (tx *Transaction) CreateLecture(l domain.Lecture) (domain.Lecture, error) {
	l.ID = tx.nextID(domain.EntityLecture)
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	if err := tx.propose(domain.Change{Entity: domain.EntityLecture, Action: domain.ActionCreate, After: domain.CloneLecture(l)}); err != nil {
		return domain.Lecture{}, err
	}
	tx.state.lectures[l.ID] = domain.CloneLecture(l)
	tx.state.lastLectureID = l.ID
	tx.linkLecture(domain.EntityClassroom, l.ClassroomID, l.ID)
	for _, schoolID := range l.SchoolIDs {
		tx.linkLecture(domain.EntitySchool, schoolID, l.ID)
	}
	return domain.CloneLecture(l), nil
}

// UpdateLecture mutates a lecture and moves its back-references when the
// classroom or school set changes.
func (tx *Transaction) UpdateLecture(id int, mutator func(*domain.Lecture) error) (domain.Lecture, error) {
	current, ok := tx.state.lectures[id]
	if !ok {
		return domain.Lecture{}, domain.NotFound(domain.EntityLecture, id)
	}
	before := domain.CloneLecture(current)
	next := domain.CloneLecture(current)
	if err := mutator(&next); err != nil {
		return domain.Lecture{}, err
	}
	next.Base = current.Base
	next.UpdatedAt = tx.now
	if err := tx.propose(domain.Change{Entity: domain.EntityLecture, Action: domain.ActionUpdate, Before: before, After: domain.CloneLecture(next)}); err != nil {
		return domain.Lecture{}, err
	}
	tx.state.lectures[id] = domain.CloneLecture(next)

	if before.ClassroomID != next.ClassroomID {
		tx.unlinkLecture(domain.EntityClassroom, before.ClassroomID, id)
		tx.linkLecture(domain.EntityClassroom, next.ClassroomID, id)
	}
	for _, schoolID := range before.SchoolIDs {
		if !next.AttendedBy(schoolID) {
			tx.unlinkLecture(domain.EntitySchool, schoolID, id)
		}
	}
	for _, schoolID := range next.SchoolIDs {
		if !before.AttendedBy(schoolID) {
			tx.linkLecture(domain.EntitySchool, schoolID, id)
		}
	}
	return domain.CloneLecture(next), nil
}

// DeleteLecture retracts a lecture's back-references and removes it.
func (tx *Transaction) DeleteLecture(id int) error {
	current, ok := tx.state.lectures[id]
	if !ok {
		return domain.NotFound(domain.EntityLecture, id)
	}
	if err := tx.propose(domain.Change{Entity: domain.EntityLecture, Action: domain.ActionDelete, Before: domain.CloneLecture(current)}); err != nil {
		return err
	}
	tx.unlinkLecture(domain.EntityClassroom, current.ClassroomID, id)
	for _, schoolID := range current.SchoolIDs {
		tx.unlinkLecture(domain.EntitySchool, schoolID, id)
	}
	delete(tx.state.lectures, id)
	return nil
}

// FindSchool retrieves a school from the transaction state.
func (tx *Transaction) FindSchool(id int) (domain.School, bool) {
	return tx.Snapshot().FindSchool(id)
}

// FindClassroom retrieves a classroom from the transaction state.
func (tx *Transaction) FindClassroom(id int) (domain.Classroom, bool) {
	return tx.Snapshot().FindClassroom(id)
}

// FindLecture retrieves a lecture from the transaction state.
func (tx *Transaction) FindLecture(id int) (domain.Lecture, bool) {
	return tx.Snapshot().FindLecture(id)
}

// linkLecture appends lectureID to the owner's back-references. Rules have
// already checked the reference, so a missing owner is a programming error.
func (tx *Transaction) linkLecture(kind domain.EntityType, ownerID, lectureID int) {
	switch kind {
	case domain.EntitySchool:
		s, ok := tx.state.schools[ownerID]
		if !ok {
			panic(fmt.Sprintf("core: link lecture %d to missing school %d", lectureID, ownerID))
		}
		s.LectureIDs = appendUnique(s.LectureIDs, lectureID)
		tx.state.schools[ownerID] = s
	case domain.EntityClassroom:
		c, ok := tx.state.classrooms[ownerID]
		if !ok {
			panic(fmt.Sprintf("core: link lecture %d to missing classroom %d", lectureID, ownerID))
		}
		c.LectureIDs = appendUnique(c.LectureIDs, lectureID)
		tx.state.classrooms[ownerID] = c
	default:
		panic(fmt.Sprintf("core: entity %q holds no lecture references", kind))
	}
}

// unlinkLecture removes lectureID from the owner's back-references.
func (tx *Transaction) unlinkLecture(kind domain.EntityType, ownerID, lectureID int) {
	switch kind {
	case domain.EntitySchool:
		s, ok := tx.state.schools[ownerID]
		if !ok {
			panic(fmt.Sprintf("core: unlink lecture %d from missing school %d", lectureID, ownerID))
		}
		s.LectureIDs = removeID(s.LectureIDs, lectureID)
		tx.state.schools[ownerID] = s
	case domain.EntityClassroom:
		c, ok := tx.state.classrooms[ownerID]
		if !ok {
			panic(fmt.Sprintf("core: unlink lecture %d from missing classroom %d", lectureID, ownerID))
		}
		c.LectureIDs = removeID(c.LectureIDs, lectureID)
		tx.state.classrooms[ownerID] = c
	default:
		panic(fmt.Sprintf("core: entity %q holds no lecture references", kind))
	}
}

func appendUnique(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeID(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func listSchools(state *memoryState) []domain.School {
	out := make([]domain.School, 0, len(state.schools))
	for _, s := range state.schools {
		out = append(out, domain.CloneSchool(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listClassrooms(state *memoryState) []domain.Classroom {
	out := make([]domain.Classroom, 0, len(state.classrooms))
	for _, c := range state.classrooms {
		out = append(out, domain.CloneClassroom(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listLectures(state *memoryState) []domain.Lecture {
	out := make([]domain.Lecture, 0, len(state.lectures))
	for _, l := range state.lectures {
		out = append(out, domain.CloneLecture(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Read helpers ---------------------------------------------------------------

// GetSchool retrieves a school by id from committed state.
func (s *MemoryStore) GetSchool(id int) (domain.School, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.state.schools[id]
	if !ok {
		return domain.School{}, false
	}
	return domain.CloneSchool(sc), true
}

// GetClassroom retrieves a classroom by id from committed state.
func (s *MemoryStore) GetClassroom(id int) (domain.Classroom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.classrooms[id]
	if !ok {
		return domain.Classroom{}, false
	}
	return domain.CloneClassroom(c), true
}

// GetLecture retrieves a lecture by id from committed state.
func (s *MemoryStore) GetLecture(id int) (domain.Lecture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.lectures[id]
	if !ok {
		return domain.Lecture{}, false
	}
	return domain.CloneLecture(l), true
}

// ListSchools returns all schools from committed state.
func (s *MemoryStore) ListSchools() []domain.School {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSchools(&s.state)
}

// ListClassrooms returns all classrooms from committed state.
func (s *MemoryStore) ListClassrooms() []domain.Classroom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listClassrooms(&s.state)
}

// ListLectures returns all lectures from committed state.
func (s *MemoryStore) ListLectures() []domain.Lecture {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listLectures(&s.state)
}

var _ domain.PersistentStore = (*MemoryStore)(nil)
