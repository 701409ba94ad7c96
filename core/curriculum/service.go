package curriculum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

var (
	NowFunc = time.Now // mockable

	// ErrCacheMiss is returned by a ReportCache that holds no report for the key.
	ErrCacheMiss = errors.New("report not cached")
)

type (
	Repository interface {
		// UpsertProgress keeps the best score of a student on an activity and counts attempts.
		UpsertProgress(ctx context.Context, p Progress) (Progress, error)
		QueryProgress(ctx context.Context, studentIDs ...string) ([]Progress, error)
	}

	// Students is the part of school.Repository progress reports read from.
	Students interface {
		GetStudent(ctx context.Context, f school.GetFilter) (school.Student, error)
		QueryStudents(ctx context.Context, f school.StudentFilter, ordering ...core.DBOrdering) ([]school.Student, error)
	}

	ReportCache interface {
		Get(ctx context.Context, key string) (Report, error)
		Set(ctx context.Context, key string, r Report) error
		Delete(ctx context.Context, keys ...string) error
	}

	Service struct {
		catalog  *Catalog
		repo     Repository
		students Students
		cache    ReportCache
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(
	catalog *Catalog,
	repo Repository,
	students Students,
	cache ReportCache,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		catalog:  catalog,
		repo:     repo,
		students: students,
		cache:    cache,
		validate: validate,
		logger:   logger,
	}
}

func teacherReportKey(teacherID string) string {
	return "report:teacher:" + teacherID
}

func principalReportKey(principalID string) string {
	return "report:principal:" + principalID
}

func (svc *Service) Catalog() *Catalog {
	return svc.catalog
}

// RecordProgress saves the result of one of the teacher's students, and invalidates the cached reports.
func (svc *Service) RecordProgress(ctx context.Context, t school.Teacher, np NewProgress) (Progress, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Progress{}, err
	}
	if _, _, err := svc.catalog.Activity(np.ActivityID); err != nil {
		return Progress{}, core.NewValidationError(err, core.FieldError{Field: "activity_id", Error: err.Error()})
	}
	s, err := svc.students.GetStudent(ctx, school.GetFilter{ID: np.StudentID, TeacherID: t.TeacherID})
	if err != nil {
		if errors.Is(err, school.ErrNotFound) {
			return Progress{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		}
		return Progress{}, fmt.Errorf("getting student: %w", err)
	}

	p, err := svc.repo.UpsertProgress(ctx, Progress{
		StudentID:  s.ID,
		ActivityID: np.ActivityID,
		Score:      np.Score,
		Completed:  np.Completed,
		Attempts:   1,
		UpdatedAt:  NowFunc().UTC(),
	})
	if err != nil {
		return Progress{}, fmt.Errorf("saving progress: %w", err)
	}

	svc.InvalidateReports(ctx, s.PrincipalID, s.TeacherID)
	return p, nil
}

// InvalidateReports drops the cached reports of the principal and of the given teachers (external IDs).
// Call it whenever a roster changes.
func (svc *Service) InvalidateReports(ctx context.Context, principalID string, teacherIDs ...string) {
	keys := make([]string, 0, len(teacherIDs)+1)
	if principalID != "" {
		keys = append(keys, principalReportKey(principalID))
	}
	for _, id := range teacherIDs {
		if id != "" {
			keys = append(keys, teacherReportKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := svc.cache.Delete(ctx, keys...); err != nil {
		svc.logger.Warn("invalidating cached reports", err)
	}
}

func (svc *Service) report(ctx context.Context, key string, filter school.StudentFilter, byTeacher bool) (Report, error) {
	r, err := svc.cache.Get(ctx, key)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		svc.logger.Warn("reading cached report", err)
	}

	filter.Status = school.StatusActive
	students, err := svc.students.QueryStudents(ctx, filter, core.DBOrdering{Field: "name", Ascending: true})
	if err != nil {
		return Report{}, fmt.Errorf("querying students: %w", err)
	}
	ids := make([]string, len(students))
	for i, s := range students {
		ids[i] = s.ID
	}
	var progress []Progress
	if len(ids) > 0 {
		if progress, err = svc.repo.QueryProgress(ctx, ids...); err != nil {
			return Report{}, fmt.Errorf("querying progress: %w", err)
		}
	}

	r = buildReport(svc.catalog, students, progress, byTeacher)
	if err = svc.cache.Set(ctx, key, r); err != nil {
		svc.logger.Warn("caching report", err)
	}
	return r, nil
}

// TeacherReport aggregates the progress of the active students of the teacher with this external ID.
func (svc *Service) TeacherReport(ctx context.Context, teacherID string) (Report, error) {
	return svc.report(ctx, teacherReportKey(teacherID), school.StudentFilter{TeacherID: teacherID}, false)
}

// PrincipalReport aggregates the progress of every active student of the principal's school, per teacher too.
func (svc *Service) PrincipalReport(ctx context.Context, principalID string) (Report, error) {
	return svc.report(ctx, principalReportKey(principalID), school.StudentFilter{PrincipalID: principalID}, true)
}
