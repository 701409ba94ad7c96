package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate, translator
}

// FieldErrors returns the field errors of a validation error, translated; it fails t on any other error.
func FieldErrors(t *testing.T, err error, translator ut.Translator) map[string]string {
	t.Helper()
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		fldErrs := make(map[string]string, len(vErrs))
		for _, vErr := range vErrs {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return fldErrs
	}
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		return vErr.FieldMap()
	}
	t.Fatalf("want a validation error, got %v", err)
	return nil
}

func CreatePrincipal(t *testing.T, repo school.Repository, name, email, pwd string) (school.Principal, school.School) {
	ctx := context.Background()
	tstamp := time.Now().UTC()
	p := school.Principal{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: tstamp, UpdatedAt: tstamp}
	if err := p.SetPassword(pwd); err != nil {
		t.Fatalf("createPrincipal() failed: %v", err)
	}
	p, err := repo.CreatePrincipal(ctx, p)
	if err != nil {
		t.Fatalf("createPrincipal() failed: %v", err)
	}
	sch, err := repo.CreateSchool(ctx, school.School{
		ID:          uuid.NewString(),
		Name:        name + "'s school",
		PrincipalID: p.ID,
		CreatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("createPrincipal() failed: %v", err)
	}
	return p, sch
}

func CreateTeacher(
	t *testing.T,
	repo school.Repository,
	sch school.School,
	teacherID, name, email, pwd string,
	isActive bool,
) school.Teacher {
	tstamp := time.Now().UTC()
	status := school.StatusActive
	if !isActive {
		status = school.StatusInactive
	}
	tchr := school.Teacher{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		Name:        name,
		Email:       email,
		Subject:     "Computer Science",
		Status:      status,
		SchoolID:    sch.ID,
		PrincipalID: sch.PrincipalID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := tchr.SetPassword(pwd); err != nil {
			t.Fatalf("createTeacher() failed: %v", err)
		}
	}
	tchr, err := repo.CreateTeacher(context.Background(), tchr)
	if err != nil {
		t.Fatalf("createTeacher() failed: %v", err)
	}
	return tchr
}

func CreateStudent(t *testing.T, repo school.Repository, tchr school.Teacher, studentID, name, class string) school.Student {
	tstamp := time.Now().UTC()
	students, err := repo.CreateStudents(context.Background(), school.Student{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Name:        name,
		Class:       class,
		ParentEmail: "parent." + studentID + "@test.in",
		Status:      school.StatusActive,
		TeacherID:   tchr.TeacherID,
		SchoolID:    tchr.SchoolID,
		PrincipalID: tchr.PrincipalID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return students[0]
}
