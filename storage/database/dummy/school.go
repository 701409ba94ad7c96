package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

type schoolRepository struct {
	db *schoolTables
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db.school}
}

// Principals

func (repo *schoolRepository) CreatePrincipal(_ context.Context, p school.Principal) (school.Principal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.principals {
		if other.ID == p.ID || other.Email == p.Email {
			return school.Principal{}, ErrDuplicate
		}
	}
	repo.db.principals[p.ID] = &p
	return p, nil
}

func (repo *schoolRepository) GetPrincipal(_ context.Context, f school.GetFilter) (school.Principal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.principals {
		if (f.ID == "" || p.ID == f.ID) && (f.Email == "" || p.Email == f.Email) {
			return *p, nil
		}
	}
	return school.Principal{}, school.ErrPrincipalNotFound
}

func (repo *schoolRepository) UpdatePrincipal(_ context.Context, p school.Principal) (school.Principal, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.principals[p.ID]; !ok {
		return school.Principal{}, school.ErrPrincipalNotFound
	}
	repo.db.principals[p.ID] = &p
	return p, nil
}

// Schools

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School) (school.School, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.schools {
		if other.ID == s.ID || other.PrincipalID == s.PrincipalID {
			return school.School{}, ErrDuplicate
		}
	}
	repo.db.schools[s.ID] = &s
	return s, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, f school.GetFilter) (school.School, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.schools {
		if (f.ID == "" || s.ID == f.ID) && (f.PrincipalID == "" || s.PrincipalID == f.PrincipalID) {
			return *s, nil
		}
	}
	return school.School{}, school.ErrSchoolNotFound
}

// Teachers

func matchTeacher(t *school.Teacher, f school.GetFilter) bool {
	return (f.ID == "" || t.ID == f.ID) &&
		(f.ExternalID == "" || t.TeacherID == f.ExternalID) &&
		(f.Email == "" || t.Email == f.Email) &&
		(f.PrincipalID == "" || t.PrincipalID == f.PrincipalID)
}

func (repo *schoolRepository) CreateTeacher(_ context.Context, t school.Teacher) (school.Teacher, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.teachers {
		if other.ID == t.ID || other.TeacherID == t.TeacherID || other.Email == t.Email {
			return school.Teacher{}, ErrDuplicate
		}
	}
	repo.db.teachers[t.ID] = &t
	return t, nil
}

func (repo *schoolRepository) GetTeacher(_ context.Context, f school.GetFilter) (school.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.teachers {
		if matchTeacher(t, f) {
			return *t, nil
		}
	}
	return school.Teacher{}, school.ErrTeacherNotFound
}

func (repo *schoolRepository) QueryTeachers(_ context.Context, f school.TeacherFilter, ordering ...core.DBOrdering) ([]school.Teacher, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(f.Search)
	teachers := make([]school.Teacher, 0)
	for _, t := range repo.db.teachers {
		if f.PrincipalID != "" && t.PrincipalID != f.PrincipalID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Name), search) &&
			!strings.Contains(strings.ToLower(t.Email), search) &&
			!strings.Contains(strings.ToLower(t.TeacherID), search) {
			continue
		}
		teachers = append(teachers, *t)
	}

	sortRows(teachers, ordering, func(t school.Teacher, col string) string {
		switch col {
		case "teacher_id":
			return t.TeacherID
		case "created_at":
			return t.CreatedAt.Format(sortTimeLayout)
		default:
			return strings.ToLower(t.Name)
		}
	})
	return teachers, nil
}

func (repo *schoolRepository) UpdateTeacher(_ context.Context, t school.Teacher, edits ...school.EditHistory) (school.Teacher, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.teachers[t.ID]; !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	for _, other := range repo.db.teachers {
		if other.ID != t.ID && other.Email == t.Email {
			return school.Teacher{}, ErrDuplicate
		}
	}
	if err := repo.checkEdits(edits); err != nil {
		return school.Teacher{}, err
	}
	repo.db.teachers[t.ID] = &t
	repo.db.edits = append(repo.db.edits, edits...)
	return t, nil
}

func (repo *schoolRepository) DeleteTeacher(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.teachers, id)
	return nil
}

func (repo *schoolRepository) FinalSubmitTeachers(_ context.Context, principalID string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, t := range repo.db.teachers {
		if t.PrincipalID == principalID && !t.IsFinalSubmitted {
			t.IsFinalSubmitted = true
			t.UpdatedAt = school.NowFunc().UTC()
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) TeacherExists(_ context.Context, f school.GetFilter) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.teachers {
		if matchTeacher(t, f) {
			return true, nil
		}
	}
	return false, nil
}

// Students

func matchStudent(s *school.Student, f school.GetFilter) bool {
	return (f.ID == "" || s.ID == f.ID) &&
		(f.ExternalID == "" || s.StudentID == f.ExternalID) &&
		(f.PrincipalID == "" || s.PrincipalID == f.PrincipalID) &&
		(f.TeacherID == "" || s.TeacherID == f.TeacherID)
}

func (repo *schoolRepository) CreateStudents(_ context.Context, students ...school.Student) ([]school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	seen := make(map[string]bool, len(students))
	for _, s := range students {
		if seen[s.ID] || seen[s.StudentID] {
			return nil, ErrDuplicate
		}
		seen[s.ID], seen[s.StudentID] = true, true
	}
	for _, other := range repo.db.students {
		if seen[other.ID] || seen[other.StudentID] {
			return nil, ErrDuplicate
		}
	}

	created := make([]school.Student, len(students))
	for i := range students {
		s := students[i]
		repo.db.students[s.ID] = &s
		created[i] = s
	}
	return created, nil
}

func (repo *schoolRepository) GetStudent(_ context.Context, f school.GetFilter) (school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.students {
		if matchStudent(s, f) {
			return *s, nil
		}
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) QueryStudents(_ context.Context, f school.StudentFilter, ordering ...core.DBOrdering) ([]school.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(f.Search)
	students := make([]school.Student, 0)
	for _, s := range repo.db.students {
		if (f.TeacherID != "" && s.TeacherID != f.TeacherID) ||
			(f.PrincipalID != "" && s.PrincipalID != f.PrincipalID) ||
			(f.Class != "" && s.Class != f.Class) ||
			(f.Section != "" && s.Section != f.Section) ||
			(f.Status != "" && s.Status != f.Status) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Name), search) &&
			!strings.Contains(strings.ToLower(s.RollNo), search) &&
			!strings.Contains(strings.ToLower(s.StudentID), search) {
			continue
		}
		students = append(students, *s)
	}

	sortRows(students, ordering, func(s school.Student, col string) string {
		switch col {
		case "roll_no":
			return s.RollNo
		case "class":
			return s.Class
		case "section":
			return s.Section
		case "created_at":
			return s.CreatedAt.Format(sortTimeLayout)
		default:
			return strings.ToLower(s.Name)
		}
	})
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(_ context.Context, s school.Student, edits ...school.EditHistory) (school.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[s.ID]; !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	if err := repo.checkEdits(edits); err != nil {
		return school.Student{}, err
	}
	repo.db.students[s.ID] = &s
	repo.db.edits = append(repo.db.edits, edits...)
	return s, nil
}

func (repo *schoolRepository) DeleteStudent(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.students, id)
	return nil
}

func (repo *schoolRepository) FinalSubmitStudents(_ context.Context, teacherID string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n := 0
	for _, s := range repo.db.students {
		if s.TeacherID == teacherID && !s.IsFinalSubmitted {
			s.IsFinalSubmitted = true
			s.UpdatedAt = school.NowFunc().UTC()
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) StudentExists(_ context.Context, f school.GetFilter) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.students {
		if matchStudent(s, f) {
			return true, nil
		}
	}
	return false, nil
}

// Edit history

// checkEdits mirrors the edit_history primary key. Callers hold the lock.
func (repo *schoolRepository) checkEdits(edits []school.EditHistory) error {
	seen := make(map[string]bool, len(repo.db.edits)+len(edits))
	for _, e := range repo.db.edits {
		seen[e.ID] = true
	}
	for _, e := range edits {
		if e.ID == "" || seen[e.ID] {
			return ErrDuplicate
		}
		seen[e.ID] = true
	}
	return nil
}

// QueryEdits returns the edits of an entity, most recent first.
func (repo *schoolRepository) QueryEdits(_ context.Context, kind, entityID string) ([]school.EditHistory, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	edits := make([]school.EditHistory, 0)
	for i := len(repo.db.edits) - 1; i >= 0; i-- {
		if e := repo.db.edits[i]; e.Kind == kind && e.EntityID == entityID {
			edits = append(edits, e)
		}
	}
	return edits, nil
}

const sortTimeLayout = "2006-01-02T15:04:05.000000000"

// sortRows orders rows like an SQL ORDER BY; by name when no ordering is given.
func sortRows[T any](rows []T, ordering []core.DBOrdering, value func(row T, col string) string) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			vi, vj := value(rows[i], ord.Field), value(rows[j], ord.Field)
			if vi == vj {
				continue
			}
			if ord.Ascending {
				return vi < vj
			}
			return vi > vj
		}
		return false
	})
}
