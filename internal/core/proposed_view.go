package core

import (
	"sort"

	"timetable/pkg/domain"
)

// proposedView overlays proposed changes on a committed snapshot so rules
// can judge the state a mutation would produce without applying it.
type proposedView struct {
	base       domain.RuleView
	schools    map[int]domain.School
	classrooms map[int]domain.Classroom
	lectures   map[int]domain.Lecture
	deleted    map[domain.EntityType]map[int]struct{}
}

func newProposedView(base domain.RuleView, changes []domain.Change) proposedView {
	v := proposedView{
		base:       base,
		schools:    make(map[int]domain.School),
		classrooms: make(map[int]domain.Classroom),
		lectures:   make(map[int]domain.Lecture),
		deleted:    make(map[domain.EntityType]map[int]struct{}),
	}
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			v.markDeleted(change)
			continue
		}
		switch rec := change.After.(type) {
		case domain.School:
			v.schools[rec.ID] = rec
		case domain.Classroom:
			v.classrooms[rec.ID] = rec
		case domain.Lecture:
			v.lectures[rec.ID] = rec
		}
	}
	return v
}

func (v proposedView) markDeleted(change domain.Change) {
	var id int
	switch rec := change.Before.(type) {
	case domain.School:
		id = rec.ID
	case domain.Classroom:
		id = rec.ID
	case domain.Lecture:
		id = rec.ID
	default:
		return
	}
	if v.deleted[change.Entity] == nil {
		v.deleted[change.Entity] = make(map[int]struct{})
	}
	v.deleted[change.Entity][id] = struct{}{}
}

func (v proposedView) isDeleted(entity domain.EntityType, id int) bool {
	_, ok := v.deleted[entity][id]
	return ok
}

func (v proposedView) Calendar() domain.Calendar { return v.base.Calendar() }

func (v proposedView) FindSchool(id int) (domain.School, bool) {
	if v.isDeleted(domain.EntitySchool, id) {
		return domain.School{}, false
	}
	if s, ok := v.schools[id]; ok {
		return s, true
	}
	return v.base.FindSchool(id)
}

func (v proposedView) FindClassroom(id int) (domain.Classroom, bool) {
	if v.isDeleted(domain.EntityClassroom, id) {
		return domain.Classroom{}, false
	}
	if c, ok := v.classrooms[id]; ok {
		return c, true
	}
	return v.base.FindClassroom(id)
}

func (v proposedView) FindLecture(id int) (domain.Lecture, bool) {
	if v.isDeleted(domain.EntityLecture, id) {
		return domain.Lecture{}, false
	}
	if l, ok := v.lectures[id]; ok {
		return l, true
	}
	return v.base.FindLecture(id)
}

func (v proposedView) ListSchools() []domain.School {
	seen := make(map[int]struct{})
	var out []domain.School
	for _, s := range v.base.ListSchools() {
		seen[s.ID] = struct{}{}
		if got, ok := v.FindSchool(s.ID); ok {
			out = append(out, got)
		}
	}
	for id, s := range v.schools {
		if _, ok := seen[id]; !ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v proposedView) ListClassrooms() []domain.Classroom {
	seen := make(map[int]struct{})
	var out []domain.Classroom
	for _, c := range v.base.ListClassrooms() {
		seen[c.ID] = struct{}{}
		if got, ok := v.FindClassroom(c.ID); ok {
			out = append(out, got)
		}
	}
	for id, c := range v.classrooms {
		if _, ok := seen[id]; !ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v proposedView) ListLectures() []domain.Lecture {
	seen := make(map[int]struct{})
	var out []domain.Lecture
	for _, l := range v.base.ListLectures() {
		seen[l.ID] = struct{}{}
		if got, ok := v.FindLecture(l.ID); ok {
			out = append(out, got)
		}
	}
	for id, l := range v.lectures {
		if _, ok := seen[id]; !ok {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ domain.RuleView = proposedView{}
