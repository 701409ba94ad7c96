package school

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/elimu/core"
)

// Statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Edit history kinds
const (
	KindTeacher = "teacher"
	KindStudent = "student"
)

type Principal struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (p *Principal) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Principal) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

type School struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Address     string    `json:"address" db:"address"`
	PrincipalID string    `json:"principal_id" db:"principal_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

type Teacher struct {
	ID               string    `json:"id" db:"id"`
	TeacherID        string    `json:"teacher_id" db:"teacher_id"` // external ID, e.g. TCH4F9A2B
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	Phone            string    `json:"phone" db:"phone"`
	Subject          string    `json:"subject" db:"subject"`
	Qualification    string    `json:"qualification" db:"qualification"`
	Experience       string    `json:"experience" db:"experience"`
	Status           string    `json:"status" db:"status"`
	SchoolID         string    `json:"school_id" db:"school_id"`
	PrincipalID      string    `json:"principal_id" db:"principal_id"`
	IsFinalSubmitted bool      `json:"is_final_submitted" db:"is_final_submitted"`
	PasswordHash     []byte    `json:"-" db:"password_hash"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Teacher) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(pwd))
}

func (t *Teacher) IsActive() bool {
	return t.Status == StatusActive
}

type Student struct {
	ID               string    `json:"id" db:"id"`
	StudentID        string    `json:"student_id" db:"student_id"` // external ID, e.g. STU7K2M9Q
	Name             string    `json:"name" db:"name"`
	RollNo           string    `json:"roll_no" db:"roll_no"`
	Class            string    `json:"class" db:"class"`
	Section          string    `json:"section" db:"section"`
	ParentEmail      string    `json:"parent_email" db:"parent_email"`
	ParentPhone      string    `json:"parent_phone" db:"parent_phone"`
	Status           string    `json:"status" db:"status"`
	TeacherID        string    `json:"teacher_id" db:"teacher_id"` // Teacher.TeacherID
	SchoolID         string    `json:"school_id" db:"school_id"`
	PrincipalID      string    `json:"principal_id" db:"principal_id"`
	IsFinalSubmitted bool      `json:"is_final_submitted" db:"is_final_submitted"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// EditHistory records who changed a teacher or a student, and how.
type EditHistory struct {
	ID        string          `json:"id" db:"id"`
	Kind      string          `json:"kind" db:"kind"`
	EntityID  string          `json:"entity_id" db:"entity_id"`
	EditedBy  string          `json:"edited_by" db:"edited_by"`
	Changes   json.RawMessage `json:"changes" db:"changes"` // {"before": ..., "after": ...}
	CreatedAt time.Time       `json:"created_at" db:"created_at"` // UTC
}

// NewTeacher contains information needed to register a Teacher.
type NewTeacher struct {
	Name          string `json:"name" validate:"required,notblank"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	Subject       string `json:"subject" validate:"required,notblank"`
	Qualification string `json:"qualification"`
	Experience    string `json:"experience"`
	Password      string `json:"password"` // generated when empty
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Qualification = core.CleanString(nt.Qualification)
	nt.Experience = core.CleanString(nt.Experience)
	return validate.Struct(nt)
}

// UpdateTeacher defines what information may be provided to modify an existing Teacher.
type UpdateTeacher struct {
	Name          string  `json:"name"`
	Email         string  `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone"`
	Subject       string  `json:"subject"`
	Qualification *string `json:"qualification"`
	Experience    *string `json:"experience"`
	Status        string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	ut.Name = core.CleanString(ut.Name)
	ut.Email = core.CleanString(ut.Email, true /* lower */)
	ut.Subject = core.CleanString(ut.Subject)
	ut.Status = core.CleanString(ut.Status, true /* lower */)
	return validate.Struct(ut)
}

func (ut UpdateTeacher) apply(t Teacher) Teacher {
	if ut.Name != "" {
		t.Name = ut.Name
	}
	if ut.Email != "" {
		t.Email = ut.Email
	}
	if ut.Phone != nil {
		t.Phone = core.CleanString(*ut.Phone)
	}
	if ut.Subject != "" {
		t.Subject = ut.Subject
	}
	if ut.Qualification != nil {
		t.Qualification = core.CleanString(*ut.Qualification)
	}
	if ut.Experience != nil {
		t.Experience = core.CleanString(*ut.Experience)
	}
	if ut.Status != "" {
		t.Status = ut.Status
	}
	return t
}

// NewStudent contains information needed to register a Student.
type NewStudent struct {
	Name        string `json:"name" validate:"required,notblank"`
	RollNo      string `json:"roll_no"`
	Class       string `json:"class" validate:"required,notblank"`
	Section     string `json:"section"`
	ParentEmail string `json:"parent_email" validate:"required,email"`
	ParentPhone string `json:"parent_phone"`
}

func (ns *NewStudent) clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNo = core.CleanString(ns.RollNo)
	ns.Class = core.CleanString(ns.Class)
	ns.Section = core.CleanString(ns.Section)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.clean()
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	Name        string  `json:"name"`
	RollNo      *string `json:"roll_no"`
	Class       string  `json:"class"`
	Section     *string `json:"section"`
	ParentEmail string  `json:"parent_email" validate:"omitempty,email"`
	ParentPhone *string `json:"parent_phone"`
	Status      string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.Class = core.CleanString(us.Class)
	us.ParentEmail = core.CleanString(us.ParentEmail, true /* lower */)
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s Student) Student {
	if us.Name != "" {
		s.Name = us.Name
	}
	if us.RollNo != nil {
		s.RollNo = core.CleanString(*us.RollNo)
	}
	if us.Class != "" {
		s.Class = us.Class
	}
	if us.Section != nil {
		s.Section = core.CleanString(*us.Section)
	}
	if us.ParentEmail != "" {
		s.ParentEmail = us.ParentEmail
	}
	if us.ParentPhone != nil {
		s.ParentPhone = core.CleanString(*us.ParentPhone)
	}
	if us.Status != "" {
		s.Status = us.Status
	}
	return s
}

type TeacherFilter struct {
	PrincipalID string `query:"-"`
	Search      string `query:"search"`
	Status      string `query:"status"`
}

func (qf *TeacherFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

type StudentFilter struct {
	TeacherID   string `query:"-"`
	PrincipalID string `query:"-"`
	Search      string `query:"search"`
	Class       string `query:"class"`
	Section     string `query:"section"`
	Status      string `query:"status"`
}

func (qf *StudentFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Class = core.CleanString(qf.Class)
	qf.Section = core.CleanString(qf.Section)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// GetFilter selects a single row; only non-empty fields apply.
type GetFilter struct {
	ID          string
	ExternalID  string // Teacher.TeacherID or Student.StudentID
	Email       string
	PrincipalID string
	TeacherID   string
}

var (
	// TeacherOrderings maps orderable API fields to columns.
	TeacherOrderings = map[string]string{"name": "name", "teacher_id": "teacher_id", "created_at": "created_at"}
	// StudentOrderings maps orderable API fields to columns.
	StudentOrderings = map[string]string{
		"name": "name", "roll_no": "roll_no", "class": "class", "section": "section", "created_at": "created_at",
	}
)
