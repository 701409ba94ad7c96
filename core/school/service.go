package school

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/elimu/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound             = errors.New("not found")
	ErrPrincipalNotFound    = fmt.Errorf("principal %w", ErrNotFound)
	ErrSchoolNotFound       = fmt.Errorf("school %w", ErrNotFound)
	ErrTeacherNotFound      = fmt.Errorf("teacher %w", ErrNotFound)
	ErrStudentNotFound      = fmt.Errorf("student %w", ErrNotFound)
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountInactive      = errors.New("account inactive")
	ErrEmailExists          = errors.New("a teacher with this email already exists")
	ErrFinalSubmitted       = errors.New("records were finally submitted and can no longer be edited")
	ErrIDExhausted          = errors.New("could not generate a unique ID")
)

type (
	Repository interface {
		CreatePrincipal(ctx context.Context, p Principal) (Principal, error)
		GetPrincipal(ctx context.Context, f GetFilter) (Principal, error)
		UpdatePrincipal(ctx context.Context, p Principal) (Principal, error)

		CreateSchool(ctx context.Context, s School) (School, error)
		GetSchool(ctx context.Context, f GetFilter) (School, error)

		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, f GetFilter) (Teacher, error)
		// QueryTeachers does a case-insensitive TeacherFilter.Search on name, email and teacher_id.
		QueryTeachers(ctx context.Context, f TeacherFilter, ordering ...core.DBOrdering) ([]Teacher, error)
		// UpdateTeacher saves t and its edits atomically.
		UpdateTeacher(ctx context.Context, t Teacher, edits ...EditHistory) (Teacher, error)
		DeleteTeacher(ctx context.Context, id string) error
		FinalSubmitTeachers(ctx context.Context, principalID string) (int, error)
		TeacherExists(ctx context.Context, f GetFilter) (bool, error)

		// CreateStudents inserts all students or none.
		CreateStudents(ctx context.Context, students ...Student) ([]Student, error)
		GetStudent(ctx context.Context, f GetFilter) (Student, error)
		// QueryStudents does a case-insensitive StudentFilter.Search on name, roll_no and student_id.
		QueryStudents(ctx context.Context, f StudentFilter, ordering ...core.DBOrdering) ([]Student, error)
		// UpdateStudent saves s and its edits atomically.
		UpdateStudent(ctx context.Context, s Student, edits ...EditHistory) (Student, error)
		DeleteStudent(ctx context.Context, id string) error
		FinalSubmitStudents(ctx context.Context, teacherID string) (int, error)
		StudentExists(ctx context.Context, f GetFilter) (bool, error)

		QueryEdits(ctx context.Context, kind, entityID string) ([]EditHistory, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, validate: validate, translator: translator}
}

func now() time.Time {
	return NowFunc().UTC()
}

// Principals

func (svc *Service) AuthenticatePrincipal(ctx context.Context, email, pwd string) (Principal, error) {
	p, err := svc.repo.GetPrincipal(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrAuthenticationFailed
		}
		return Principal{}, fmt.Errorf("getting principal: %w", err)
	}
	if err = p.CheckPassword(pwd); err != nil {
		return Principal{}, ErrAuthenticationFailed
	}
	return p, nil
}

func (svc *Service) GetPrincipal(ctx context.Context, id string) (Principal, error) {
	return svc.repo.GetPrincipal(ctx, GetFilter{ID: id})
}

// AddPrincipal creates or updates the principal with this email, and its school.
func (svc *Service) AddPrincipal(ctx context.Context, name, email, pwd, schoolName string) (Principal, School, error) {
	email = core.CleanString(email, true /* lower */)
	p, err := svc.repo.GetPrincipal(ctx, GetFilter{Email: email})
	isNew := errors.Is(err, ErrNotFound)
	if err != nil && !isNew {
		return Principal{}, School{}, fmt.Errorf("getting principal: %w", err)
	}

	tstamp := now()
	if isNew {
		p = Principal{ID: uuid.NewString(), Email: email, CreatedAt: tstamp}
	}
	if name = core.CleanString(name); name != "" {
		p.Name = name
	}
	p.UpdatedAt = tstamp
	if err = p.SetPassword(pwd); err != nil {
		return Principal{}, School{}, err
	}
	if isNew {
		p, err = svc.repo.CreatePrincipal(ctx, p)
	} else {
		p, err = svc.repo.UpdatePrincipal(ctx, p)
	}
	if err != nil {
		return Principal{}, School{}, fmt.Errorf("saving principal: %w", err)
	}

	sch, err := svc.repo.GetSchool(ctx, GetFilter{PrincipalID: p.ID})
	if errors.Is(err, ErrNotFound) {
		sch, err = svc.repo.CreateSchool(ctx, School{
			ID:          uuid.NewString(),
			Name:        core.CleanString(schoolName),
			PrincipalID: p.ID,
			CreatedAt:   tstamp,
		})
	}
	if err != nil {
		return Principal{}, School{}, fmt.Errorf("saving school: %w", err)
	}
	return p, sch, nil
}

func (svc *Service) GetSchool(ctx context.Context, principalID string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{PrincipalID: principalID})
}

// Teachers

// AuthenticateTeacher checks the credentials of the teacher with this external ID.
func (svc *Service) AuthenticateTeacher(ctx context.Context, teacherID, pwd string) (Teacher, error) {
	t, err := svc.repo.GetTeacher(ctx, GetFilter{ExternalID: core.CleanString(teacherID)})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Teacher{}, ErrAuthenticationFailed
		}
		return Teacher{}, fmt.Errorf("getting teacher: %w", err)
	}
	if err = t.CheckPassword(pwd); err != nil {
		return Teacher{}, ErrAuthenticationFailed
	}
	if !t.IsActive() {
		return Teacher{}, ErrAccountInactive
	}
	return t, nil
}

// GetTeacher returns the teacher with this external ID.
func (svc *Service) GetTeacher(ctx context.Context, teacherID string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{ExternalID: teacherID})
}

func (svc *Service) Teachers(ctx context.Context, principalID string, filter TeacherFilter, ordering ...core.DBOrdering) ([]Teacher, error) {
	filter.PrincipalID = principalID
	filter.Clean()
	return svc.repo.QueryTeachers(ctx, filter, core.FilterOrderings(ordering, TeacherOrderings)...)
}

func (svc *Service) checkTeacherEmail(ctx context.Context, email string, excludedID string) error {
	t, err := svc.repo.GetTeacher(ctx, GetFilter{Email: email})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if t.ID == excludedID {
		return nil
	}
	return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
}

// RegisterTeacher adds a teacher to the principal's school.
// It returns the initial password, generated when nt.Password is empty.
func (svc *Service) RegisterTeacher(ctx context.Context, principalID string, nt NewTeacher) (Teacher, string, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Teacher{}, "", err
	}
	if err := svc.checkTeacherEmail(ctx, nt.Email, ""); err != nil {
		return Teacher{}, "", err
	}
	sch, err := svc.repo.GetSchool(ctx, GetFilter{PrincipalID: principalID})
	if err != nil {
		return Teacher{}, "", fmt.Errorf("getting school: %w", err)
	}

	pwd := nt.Password
	if pwd == "" {
		if pwd, err = GeneratePassword(); err != nil {
			return Teacher{}, "", err
		}
	} else if err = svc.ValidatePassword(pwd, nt.Name, nt.Email); err != nil {
		return Teacher{}, "", err
	}

	teacherID, err := svc.uniqueID(ctx, TeacherIDPrefix, svc.repo.TeacherExists)
	if err != nil {
		return Teacher{}, "", err
	}

	tstamp := now()
	t := Teacher{
		ID:            uuid.NewString(),
		TeacherID:     teacherID,
		Name:          nt.Name,
		Email:         nt.Email,
		Phone:         nt.Phone,
		Subject:       nt.Subject,
		Qualification: nt.Qualification,
		Experience:    nt.Experience,
		Status:        StatusActive,
		SchoolID:      sch.ID,
		PrincipalID:   principalID,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if err = t.SetPassword(pwd); err != nil {
		return Teacher{}, "", err
	}
	if t, err = svc.repo.CreateTeacher(ctx, t); err != nil {
		return Teacher{}, "", fmt.Errorf("creating teacher: %w", err)
	}
	return t, pwd, nil
}

func (svc *Service) principalTeacher(ctx context.Context, principalID, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, GetFilter{ID: id, PrincipalID: principalID})
}

func (svc *Service) UpdateTeacher(ctx context.Context, principalID, id string, ut UpdateTeacher) (Teacher, error) {
	if err := ut.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	orig, err := svc.principalTeacher(ctx, principalID, id)
	if err != nil {
		return Teacher{}, err
	}
	if orig.IsFinalSubmitted {
		return Teacher{}, ErrFinalSubmitted
	}
	if ut.Email != "" {
		if err = svc.checkTeacherEmail(ctx, ut.Email, orig.ID); err != nil {
			return Teacher{}, err
		}
	}

	t := ut.apply(orig)
	t.UpdatedAt = now()
	edit, err := newEdit(KindTeacher, t.ID, principalID, orig, t)
	if err != nil {
		return Teacher{}, err
	}
	if t, err = svc.repo.UpdateTeacher(ctx, t, edit); err != nil {
		return Teacher{}, fmt.Errorf("updating teacher: %w", err)
	}
	return t, nil
}

func (svc *Service) DeleteTeacher(ctx context.Context, principalID, id string) error {
	t, err := svc.principalTeacher(ctx, principalID, id)
	if err != nil {
		return err
	}
	if t.IsFinalSubmitted {
		return ErrFinalSubmitted
	}
	return svc.repo.DeleteTeacher(ctx, t.ID)
}

// FinalSubmitTeachers locks the principal's teacher roster.
func (svc *Service) FinalSubmitTeachers(ctx context.Context, principalID string) (int, error) {
	return svc.repo.FinalSubmitTeachers(ctx, principalID)
}

// SetTeacherPassword applies the password policy and sets a new password.
func (svc *Service) SetTeacherPassword(ctx context.Context, teacherID, pwd string) error {
	t, err := svc.repo.GetTeacher(ctx, GetFilter{ExternalID: core.CleanString(teacherID)})
	if err != nil {
		return err
	}
	if err = svc.ValidatePassword(pwd, t.Name, t.Email); err != nil {
		return err
	}
	if err = t.SetPassword(pwd); err != nil {
		return err
	}
	t.UpdatedAt = now()
	_, err = svc.repo.UpdateTeacher(ctx, t)
	return err
}

// Students

// Students returns the students of the teacher with this external ID.
func (svc *Service) Students(ctx context.Context, teacherID string, filter StudentFilter, ordering ...core.DBOrdering) ([]Student, error) {
	filter.TeacherID = teacherID
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter, core.FilterOrderings(ordering, StudentOrderings)...)
}

func (svc *Service) newStudent(ctx context.Context, t Teacher, ns NewStudent, tstamp time.Time, taken map[string]bool) (Student, error) {
	exists := func(ctx context.Context, f GetFilter) (bool, error) {
		if taken[f.ExternalID] {
			return true, nil
		}
		return svc.repo.StudentExists(ctx, f)
	}
	studentID, err := svc.uniqueID(ctx, StudentIDPrefix, exists)
	if err != nil {
		return Student{}, err
	}
	taken[studentID] = true
	return Student{
		ID:          uuid.NewString(),
		StudentID:   studentID,
		Name:        ns.Name,
		RollNo:      ns.RollNo,
		Class:       ns.Class,
		Section:     ns.Section,
		ParentEmail: ns.ParentEmail,
		ParentPhone: ns.ParentPhone,
		Status:      StatusActive,
		TeacherID:   t.TeacherID,
		SchoolID:    t.SchoolID,
		PrincipalID: t.PrincipalID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}, nil
}

func (svc *Service) RegisterStudent(ctx context.Context, t Teacher, ns NewStudent) (Student, error) {
	students, err := svc.ImportStudents(ctx, t, []NewStudent{ns})
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) && vErr.Err == nil {
			// single registration: report plain field names
			for i := range vErr.Fields {
				vErr.Fields[i].Field = stripRowPrefix(vErr.Fields[i].Field)
			}
		}
		return Student{}, err
	}
	return students[0], nil
}

// ImportStudents registers the students of a bulk upload.
// Nothing is saved unless every row is valid; field errors are reported as "rows[i].field".
func (svc *Service) ImportStudents(ctx context.Context, t Teacher, rows []NewStudent) ([]Student, error) {
	if len(rows) == 0 {
		return nil, core.NewValidationError(errors.New("no students to import"))
	}
	var fldErrs []core.FieldError
	for i := range rows {
		if err := rows[i].Validate(svc.validate); err != nil {
			var vErrs validator.ValidationErrors
			if !errors.As(err, &vErrs) {
				return nil, err
			}
			for _, vErr := range vErrs {
				fldErrs = append(fldErrs, core.FieldError{
					Field: rowField(i, vErr.Field()),
					Error: vErr.Translate(svc.translator),
				})
			}
		}
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}
	if t.IsFinalSubmitted {
		return nil, ErrFinalSubmitted
	}

	tstamp := now()
	taken := make(map[string]bool, len(rows))
	students := make([]Student, 0, len(rows))
	for _, ns := range rows {
		s, err := svc.newStudent(ctx, t, ns, tstamp, taken)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	students, err := svc.repo.CreateStudents(ctx, students...)
	if err != nil {
		return nil, fmt.Errorf("creating students: %w", err)
	}
	return students, nil
}

func (svc *Service) teacherStudent(ctx context.Context, t Teacher, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, GetFilter{ID: id, TeacherID: t.TeacherID})
}

func (svc *Service) UpdateStudent(ctx context.Context, t Teacher, id string, us UpdateStudent) (Student, error) {
	if err := us.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	orig, err := svc.teacherStudent(ctx, t, id)
	if err != nil {
		return Student{}, err
	}
	if orig.IsFinalSubmitted {
		return Student{}, ErrFinalSubmitted
	}

	s := us.apply(orig)
	s.UpdatedAt = now()
	edit, err := newEdit(KindStudent, s.ID, t.TeacherID, orig, s)
	if err != nil {
		return Student{}, err
	}
	if s, err = svc.repo.UpdateStudent(ctx, s, edit); err != nil {
		return Student{}, fmt.Errorf("updating student: %w", err)
	}
	return s, nil
}

func (svc *Service) DeleteStudent(ctx context.Context, t Teacher, id string) error {
	s, err := svc.teacherStudent(ctx, t, id)
	if err != nil {
		return err
	}
	if s.IsFinalSubmitted {
		return ErrFinalSubmitted
	}
	return svc.repo.DeleteStudent(ctx, s.ID)
}

// FinalSubmitStudents locks the teacher's student roster.
func (svc *Service) FinalSubmitStudents(ctx context.Context, t Teacher) (int, error) {
	return svc.repo.FinalSubmitStudents(ctx, t.TeacherID)
}

// Edit history

func newEdit(kind, entityID, editor string, before, after interface{}) (EditHistory, error) {
	changes, err := json.Marshal(map[string]interface{}{"before": before, "after": after})
	if err != nil {
		return EditHistory{}, fmt.Errorf("marshalling changes: %w", err)
	}
	return EditHistory{
		ID:        uuid.NewString(),
		Kind:      kind,
		EntityID:  entityID,
		EditedBy:  editor,
		Changes:   changes,
		CreatedAt: now(),
	}, nil
}

// TeacherHistory returns the edits of one of the principal's teachers.
func (svc *Service) TeacherHistory(ctx context.Context, principalID, id string) ([]EditHistory, error) {
	t, err := svc.principalTeacher(ctx, principalID, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryEdits(ctx, KindTeacher, t.ID)
}

// StudentHistory returns the edits of one of the teacher's students.
func (svc *Service) StudentHistory(ctx context.Context, t Teacher, id string) ([]EditHistory, error) {
	s, err := svc.teacherStudent(ctx, t, id)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryEdits(ctx, KindStudent, s.ID)
}
