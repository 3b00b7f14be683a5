// Package seed loads timetable descriptors from YAML and replays them
// through the schedule facade.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"timetable/internal/core"
	"timetable/pkg/domain"
)

//go:embed default.yaml
var defaultSeed []byte

// School describes a school to create.
type School struct {
	Name   string `yaml:"name"`
	Amount int    `yaml:"amount"`
}

// Classroom describes a classroom to create.
type Classroom struct {
	Name        string `yaml:"name"`
	Capacity    int    `yaml:"capacity"`
	Description string `yaml:"description"`
}

// Interval is a start/end pair as written in seed files.
type Interval struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// Lecture describes a lecture to create. Ids are 1-based positions in the
// seed's school and classroom lists; Apply translates them to the ids the
// facade assigned.
type Lecture struct {
	Name        string   `yaml:"name"`
	Lecturer    string   `yaml:"lecturer"`
	Time        Interval `yaml:"time"`
	ClassroomID int      `yaml:"classroom_id"`
	SchoolIDs   []int    `yaml:"school_ids"`
}

// Seed is a full set of descriptors.
type Seed struct {
	Schools    []School    `yaml:"schools"`
	Classrooms []Classroom `yaml:"classrooms"`
	Lectures   []Lecture   `yaml:"lectures"`
}

// Load decodes a seed document. Unknown keys are rejected.
func Load(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return Seed{}, nil
		}
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return s, nil
}

// LoadFile decodes the seed document at path.
func LoadFile(path string) (Seed, error) {
	f, err := os.Open(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return Seed{}, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded bootstrap timetable.
func Default() Seed {
	s, err := Load(bytes.NewReader(defaultSeed))
	if err != nil {
		panic(fmt.Sprintf("seed: embedded default is invalid: %v", err))
	}
	return s
}

// Failure records a descriptor the facade rejected.
type Failure struct {
	Entity domain.EntityType
	Index  int
	Name   string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("seed %s #%d (%s): %v", f.Entity, f.Index, f.Name, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Report summarises a replay.
type Report struct {
	Schools    int
	Classrooms int
	Lectures   int
	Failures   []Failure
}

// Options tunes Apply.
type Options struct {
	// ContinueOnError keeps replaying after a rejected descriptor.
	ContinueOnError bool
}

// Apply creates every descriptor through the facade in order: schools,
// classrooms, then lectures. Without ContinueOnError it stops at, and
// returns, the first failure. A lecture naming a rejected or missing
// descriptor fails with not_found without reaching the facade.
func Apply(ctx context.Context, schedule *core.Schedule, s Seed, opts Options) (Report, error) {
	var report Report
	schoolIDs := make([]int, len(s.Schools))
	classroomIDs := make([]int, len(s.Classrooms))

	fail := func(entity domain.EntityType, index int, name string, err error) error {
		f := Failure{Entity: entity, Index: index, Name: name, Err: err}
		report.Failures = append(report.Failures, f)
		if opts.ContinueOnError {
			return nil
		}
		return f
	}

	for i, school := range s.Schools {
		id, err := schedule.Create(ctx, domain.EntitySchool, core.Options{Name: school.Name, Amount: school.Amount})
		if err != nil {
			if ferr := fail(domain.EntitySchool, i, school.Name, err); ferr != nil {
				return report, ferr
			}
			continue
		}
		schoolIDs[i] = id
		report.Schools++
	}

	for i, classroom := range s.Classrooms {
		id, err := schedule.Create(ctx, domain.EntityClassroom, core.Options{
			Name:        classroom.Name,
			Capacity:    classroom.Capacity,
			Description: classroom.Description,
		})
		if err != nil {
			if ferr := fail(domain.EntityClassroom, i, classroom.Name, err); ferr != nil {
				return report, ferr
			}
			continue
		}
		classroomIDs[i] = id
		report.Classrooms++
	}

	for i, lecture := range s.Lectures {
		classroomID, err := resolve(domain.EntityClassroom, classroomIDs, lecture.ClassroomID)
		var attending []int
		if err == nil {
			attending, err = resolveAll(domain.EntitySchool, schoolIDs, lecture.SchoolIDs)
		}
		if err == nil {
			_, err = schedule.Create(ctx, domain.EntityLecture, core.Options{
				Name:        lecture.Name,
				Lecturer:    lecture.Lecturer,
				Time:        domain.NewTimeRange(lecture.Time.Start, lecture.Time.End),
				ClassroomID: classroomID,
				SchoolIDs:   attending,
			})
		}
		if err != nil {
			if ferr := fail(domain.EntityLecture, i, lecture.Name, err); ferr != nil {
				return report, ferr
			}
			continue
		}
		report.Lectures++
	}

	return report, nil
}

// resolve maps a 1-based descriptor position to the id its record received.
// Non-positive positions pass through so the facade reports them.
func resolve(entity domain.EntityType, assigned []int, position int) (int, error) {
	if position <= 0 {
		return position, nil
	}
	if position > len(assigned) {
		return 0, &domain.Error{
			Kind:    domain.KindNotFound,
			Message: fmt.Sprintf("seed has no %s descriptor %d", entity, position),
			Entity:  entity,
			ID:      position,
		}
	}
	if assigned[position-1] == 0 {
		return 0, &domain.Error{
			Kind:    domain.KindNotFound,
			Message: fmt.Sprintf("%s descriptor %d was rejected", entity, position),
			Entity:  entity,
			ID:      position,
		}
	}
	return assigned[position-1], nil
}

func resolveAll(entity domain.EntityType, assigned []int, positions []int) ([]int, error) {
	if positions == nil {
		return nil, nil
	}
	ids := make([]int, 0, len(positions))
	for _, position := range positions {
		id, err := resolve(entity, assigned, position)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
