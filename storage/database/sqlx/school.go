package sqlxrepos

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

const (
	principalColumns = "id, name, email, password_hash, created_at, updated_at"
	schoolColumns    = "id, name, address, principal_id, created_at"
	teacherColumns   = "id, teacher_id, name, email, phone, subject, qualification, experience, status, " +
		"school_id, principal_id, is_final_submitted, password_hash, created_at, updated_at"
	studentColumns = "id, student_id, name, roll_no, class, section, parent_email, parent_phone, status, " +
		"teacher_id, school_id, principal_id, is_final_submitted, created_at, updated_at"
)

type schoolRepository struct {
	db core.DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db core.DB) school.Repository {
	return &schoolRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return wrapErr(err, msg)
}

// wrapErr turns a closed connection pool into a shutdown error: the API cannot serve without it.
func wrapErr(err error, msg string) error {
	if errors.Is(err, sql.ErrConnDone) || (err != nil && err.Error() == "sql: database is closed") {
		return core.NewShutdownError(msg + ": " + err.Error())
	}
	return pkgerrors.Wrap(err, msg)
}

// where builds a WHERE clause out of the non-empty column values.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) eq(col, val string) {
	if val != "" {
		w.args = append(w.args, val)
		w.conds = append(w.conds, col+" = ?")
	}
}

func (w *where) ilike(val string, cols ...string) {
	if val == "" {
		return
	}
	ors := make([]string, len(cols))
	for i, col := range cols {
		w.args = append(w.args, "%"+val+"%")
		ors[i] = col + " ILIKE ?"
	}
	w.conds = append(w.conds, "("+strings.Join(ors, " OR ")+")")
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func orderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return " ORDER BY name ASC"
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// getFilter builds the WHERE clause of a GetFilter; ok is false when f.ID is not a UUID.
func getFilter(f school.GetFilter, externalCol string) (w where, ok bool) {
	if f.ID != "" {
		if _, err := uuid.Parse(f.ID); err != nil {
			return w, false
		}
	}
	w.eq("id", f.ID)
	if externalCol != "" {
		w.eq(externalCol, f.ExternalID)
	}
	w.eq("email", f.Email)
	w.eq("principal_id", f.PrincipalID)
	w.eq("teacher_id", f.TeacherID)
	return w, true
}

func (repo *schoolRepository) get(ctx context.Context, dest interface{}, columns, table string, w where) error {
	q := repo.db.Rebind("SELECT " + columns + " FROM " + table + w.String() + " LIMIT 1")
	return repo.db.GetContext(ctx, dest, q, w.args...)
}

func (repo *schoolRepository) exists(ctx context.Context, table string, w where) (bool, error) {
	var exists bool
	q := repo.db.Rebind("SELECT EXISTS (SELECT 1 FROM " + table + w.String() + ")")
	if err := repo.db.GetContext(ctx, &exists, q, w.args...); err != nil {
		return false, wrapErr(err, "checking "+table)
	}
	return exists, nil
}

// withTx runs fn in a transaction committed only if fn succeeds.
func (repo *schoolRepository) withTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = fn(tx); err != nil {
		return err
	}
	return wrapErr(tx.Commit(), "committing transaction")
}

func (repo *schoolRepository) update(ctx context.Context, exec core.DBExecutor, table, set string, arg interface{}, notFound error) error {
	res, err := exec.NamedExecContext(ctx, "UPDATE "+table+" SET "+set+" WHERE id = :id", arg)
	if err != nil {
		return wrapErr(err, "updating "+table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound
	}
	return nil
}

// Principals

func (repo *schoolRepository) CreatePrincipal(ctx context.Context, p school.Principal) (school.Principal, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO principals ("+principalColumns+") "+
			"VALUES (:id, :name, :email, :password_hash, :created_at, :updated_at)", p)
	if err != nil {
		return school.Principal{}, wrapErr(err, "inserting principal")
	}
	return p, nil
}

func (repo *schoolRepository) GetPrincipal(ctx context.Context, f school.GetFilter) (school.Principal, error) {
	w, ok := getFilter(school.GetFilter{ID: f.ID, Email: f.Email}, "")
	if !ok {
		return school.Principal{}, school.ErrPrincipalNotFound
	}
	var p school.Principal
	if err := repo.get(ctx, &p, principalColumns, "principals", w); err != nil {
		return school.Principal{}, trapNoRowsErr(err, school.ErrPrincipalNotFound, "getting principal")
	}
	return p, nil
}

func (repo *schoolRepository) UpdatePrincipal(ctx context.Context, p school.Principal) (school.Principal, error) {
	err := repo.update(ctx, repo.db, "principals",
		"name = :name, email = :email, password_hash = :password_hash, updated_at = :updated_at",
		p, school.ErrPrincipalNotFound)
	if err != nil {
		return school.Principal{}, err
	}
	return p, nil
}

// Schools

func (repo *schoolRepository) CreateSchool(ctx context.Context, s school.School) (school.School, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO schools ("+schoolColumns+") VALUES (:id, :name, :address, :principal_id, :created_at)", s)
	if err != nil {
		return school.School{}, wrapErr(err, "inserting school")
	}
	return s, nil
}

func (repo *schoolRepository) GetSchool(ctx context.Context, f school.GetFilter) (school.School, error) {
	w, ok := getFilter(school.GetFilter{ID: f.ID, PrincipalID: f.PrincipalID}, "")
	if !ok {
		return school.School{}, school.ErrSchoolNotFound
	}
	var s school.School
	if err := repo.get(ctx, &s, schoolColumns, "schools", w); err != nil {
		return school.School{}, trapNoRowsErr(err, school.ErrSchoolNotFound, "getting school")
	}
	return s, nil
}

// Teachers

func teacherFilter(f school.GetFilter) (where, bool) {
	f.TeacherID = "" // teachers are looked up by ExternalID
	return getFilter(f, "teacher_id")
}

func (repo *schoolRepository) CreateTeacher(ctx context.Context, t school.Teacher) (school.Teacher, error) {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO teachers ("+teacherColumns+") VALUES ("+
			":id, :teacher_id, :name, :email, :phone, :subject, :qualification, :experience, :status, "+
			":school_id, :principal_id, :is_final_submitted, :password_hash, :created_at, :updated_at)", t)
	if err != nil {
		return school.Teacher{}, wrapErr(err, "inserting teacher")
	}
	return t, nil
}

func (repo *schoolRepository) GetTeacher(ctx context.Context, f school.GetFilter) (school.Teacher, error) {
	w, ok := teacherFilter(f)
	if !ok {
		return school.Teacher{}, school.ErrTeacherNotFound
	}
	var t school.Teacher
	if err := repo.get(ctx, &t, teacherColumns, "teachers", w); err != nil {
		return school.Teacher{}, trapNoRowsErr(err, school.ErrTeacherNotFound, "getting teacher")
	}
	return t, nil
}

func (repo *schoolRepository) QueryTeachers(ctx context.Context, f school.TeacherFilter, ordering ...core.DBOrdering) ([]school.Teacher, error) {
	var w where
	w.eq("principal_id", f.PrincipalID)
	w.eq("status", f.Status)
	w.ilike(f.Search, "name", "email", "teacher_id")

	teachers := make([]school.Teacher, 0)
	q := repo.db.Rebind("SELECT " + teacherColumns + " FROM teachers" + w.String() + orderBy(ordering))
	if err := repo.db.SelectContext(ctx, &teachers, q, w.args...); err != nil {
		return nil, wrapErr(err, "querying teachers")
	}
	return teachers, nil
}

func (repo *schoolRepository) UpdateTeacher(ctx context.Context, t school.Teacher, edits ...school.EditHistory) (school.Teacher, error) {
	err := repo.withTx(ctx, func(exec core.DBExecutor) error {
		err := repo.update(ctx, exec, "teachers",
			"name = :name, email = :email, phone = :phone, subject = :subject, qualification = :qualification, "+
				"experience = :experience, status = :status, is_final_submitted = :is_final_submitted, "+
				"password_hash = :password_hash, updated_at = :updated_at",
			t, school.ErrTeacherNotFound)
		if err != nil {
			return err
		}
		return insertEdits(ctx, exec, edits)
	})
	if err != nil {
		return school.Teacher{}, err
	}
	return t, nil
}

func (repo *schoolRepository) DeleteTeacher(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM teachers WHERE id = $1", id); err != nil {
		return wrapErr(err, "deleting teacher")
	}
	return nil
}

func (repo *schoolRepository) finalSubmit(ctx context.Context, table, ownerCol, ownerID string) (int, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE "+table+" SET is_final_submitted = TRUE, updated_at = $1 "+
			"WHERE "+ownerCol+" = $2 AND NOT is_final_submitted",
		school.NowFunc().UTC(), ownerID)
	if err != nil {
		return 0, wrapErr(err, "submitting "+table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(err, "submitting "+table)
	}
	return int(n), nil
}

func (repo *schoolRepository) FinalSubmitTeachers(ctx context.Context, principalID string) (int, error) {
	return repo.finalSubmit(ctx, "teachers", "principal_id", principalID)
}

func (repo *schoolRepository) TeacherExists(ctx context.Context, f school.GetFilter) (bool, error) {
	w, ok := teacherFilter(f)
	if !ok {
		return false, nil
	}
	return repo.exists(ctx, "teachers", w)
}

// Students

func (repo *schoolRepository) CreateStudents(ctx context.Context, students ...school.Student) ([]school.Student, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapErr(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for i, s := range students {
		_, err = tx.NamedExecContext(ctx,
			"INSERT INTO students ("+studentColumns+") VALUES ("+
				":id, :student_id, :name, :roll_no, :class, :section, :parent_email, :parent_phone, :status, "+
				":teacher_id, :school_id, :principal_id, :is_final_submitted, :created_at, :updated_at)", s)
		if err != nil {
			return nil, wrapErr(err, "inserting student #"+strconv.Itoa(i))
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, wrapErr(err, "committing students")
	}
	return students, nil
}

func (repo *schoolRepository) GetStudent(ctx context.Context, f school.GetFilter) (school.Student, error) {
	w, ok := getFilter(school.GetFilter{ID: f.ID, ExternalID: f.ExternalID, PrincipalID: f.PrincipalID, TeacherID: f.TeacherID}, "student_id")
	if !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	var s school.Student
	if err := repo.get(ctx, &s, studentColumns, "students", w); err != nil {
		return school.Student{}, trapNoRowsErr(err, school.ErrStudentNotFound, "getting student")
	}
	return s, nil
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, f school.StudentFilter, ordering ...core.DBOrdering) ([]school.Student, error) {
	var w where
	w.eq("teacher_id", f.TeacherID)
	w.eq("principal_id", f.PrincipalID)
	w.eq("class", f.Class)
	w.eq("section", f.Section)
	w.eq("status", f.Status)
	w.ilike(f.Search, "name", "roll_no", "student_id")

	students := make([]school.Student, 0)
	q := repo.db.Rebind("SELECT " + studentColumns + " FROM students" + w.String() + orderBy(ordering))
	if err := repo.db.SelectContext(ctx, &students, q, w.args...); err != nil {
		return nil, wrapErr(err, "querying students")
	}
	return students, nil
}

func (repo *schoolRepository) UpdateStudent(ctx context.Context, s school.Student, edits ...school.EditHistory) (school.Student, error) {
	err := repo.withTx(ctx, func(exec core.DBExecutor) error {
		err := repo.update(ctx, exec, "students",
			"name = :name, roll_no = :roll_no, class = :class, section = :section, parent_email = :parent_email, "+
				"parent_phone = :parent_phone, status = :status, is_final_submitted = :is_final_submitted, "+
				"updated_at = :updated_at",
			s, school.ErrStudentNotFound)
		if err != nil {
			return err
		}
		return insertEdits(ctx, exec, edits)
	})
	if err != nil {
		return school.Student{}, err
	}
	return s, nil
}

func (repo *schoolRepository) DeleteStudent(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		return wrapErr(err, "deleting student")
	}
	return nil
}

func (repo *schoolRepository) FinalSubmitStudents(ctx context.Context, teacherID string) (int, error) {
	return repo.finalSubmit(ctx, "students", "teacher_id", teacherID)
}

func (repo *schoolRepository) StudentExists(ctx context.Context, f school.GetFilter) (bool, error) {
	w, ok := getFilter(school.GetFilter{ID: f.ID, ExternalID: f.ExternalID, PrincipalID: f.PrincipalID, TeacherID: f.TeacherID}, "student_id")
	if !ok {
		return false, nil
	}
	return repo.exists(ctx, "students", w)
}

// Edit history

func insertEdits(ctx context.Context, exec core.DBExecutor, edits []school.EditHistory) error {
	for _, e := range edits {
		// jsonb is sent as text: lib/pq would encode []byte as bytea
		_, err := exec.ExecContext(ctx,
			"INSERT INTO edit_history (id, kind, entity_id, edited_by, changes, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
			e.ID, e.Kind, e.EntityID, e.EditedBy, string(e.Changes), e.CreatedAt)
		if err != nil {
			return wrapErr(err, "inserting edit")
		}
	}
	return nil
}

func (repo *schoolRepository) QueryEdits(ctx context.Context, kind, entityID string) ([]school.EditHistory, error) {
	edits := make([]school.EditHistory, 0)
	if _, err := uuid.Parse(entityID); err != nil {
		return edits, nil
	}
	err := repo.db.SelectContext(ctx, &edits,
		"SELECT id, kind, entity_id, edited_by, changes, created_at FROM edit_history "+
			"WHERE kind = $1 AND entity_id = $2 ORDER BY created_at DESC", kind, entityID)
	if err != nil {
		return nil, wrapErr(err, "querying edits")
	}
	return edits, nil
}

var _ core.DB = (*sqlx.DB)(nil) // interface compliance check
