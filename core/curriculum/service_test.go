package curriculum_test

import (
	"context"
	"errors"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/school"
	cachesvc "github.com/trezcool/elimu/services/cache"
	dummydb "github.com/trezcool/elimu/storage/database/dummy"
	testutil "github.com/trezcool/elimu/tests"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = nopLogger{} // interface compliance check

// countingCache counts reads that missed.
type countingCache struct {
	curriculum.ReportCache
	misses int
}

func (c *countingCache) Get(ctx context.Context, key string) (curriculum.Report, error) {
	r, err := c.ReportCache.Get(ctx, key)
	if errors.Is(err, curriculum.ErrCacheMiss) {
		c.misses++
	}
	return r, err
}

var translator ut.Translator

func fieldMap(t *testing.T, err error) map[string]string {
	t.Helper()
	return testutil.FieldErrors(t, err, translator)
}

type fixture struct {
	svc    *curriculum.Service
	repo   school.Repository
	cache  *countingCache
	p      school.Principal
	ravi   school.Teacher
	mira   school.Teacher
	anu    school.Student
	bala   school.Student
	chitra school.Student
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := dummydb.Open()
	schoolRepo := dummydb.NewSchoolRepository(db)
	cat, err := curriculum.LoadCatalog()
	require.NoError(t, err)
	var validate *validator.Validate
	validate, translator = testutil.NewValidator()
	cache := &countingCache{ReportCache: cachesvc.NewMemoryCache(time.Minute)}

	f := fixture{
		svc:   curriculum.NewService(cat, dummydb.NewProgressRepository(db), schoolRepo, cache, validate, nopLogger{}),
		repo:  schoolRepo,
		cache: cache,
	}
	var sch school.School
	f.p, sch = testutil.CreatePrincipal(t, schoolRepo, "Asha", "asha@school.in", "Pr1ncipal!")
	f.ravi = testutil.CreateTeacher(t, schoolRepo, sch, "TCH4F9A2B", "Ravi", "ravi@school.in", "secret123", true)
	f.mira = testutil.CreateTeacher(t, schoolRepo, sch, "TCH000001", "Mira", "mira@school.in", "secret123", true)
	f.anu = testutil.CreateStudent(t, schoolRepo, f.ravi, "STU000001", "Anu", "5")
	f.bala = testutil.CreateStudent(t, schoolRepo, f.ravi, "STU000002", "Bala", "5")
	f.chitra = testutil.CreateStudent(t, schoolRepo, f.mira, "STU000003", "Chitra", "6")
	return f
}

func TestService_RecordProgress(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		np        curriculum.NewProgress
		wantField string
	}{
		{name: "missing fields", np: curriculum.NewProgress{}, wantField: "student_id"},
		{name: "score out of range", np: curriculum.NewProgress{StudentID: f.anu.ID, ActivityID: "keyboard", Score: 101}, wantField: "score"},
		{name: "unknown activity", np: curriculum.NewProgress{StudentID: f.anu.ID, ActivityID: "tetris"}, wantField: "activity_id"},
		{name: "another teacher's student", np: curriculum.NewProgress{StudentID: f.chitra.ID, ActivityID: "keyboard"}, wantField: "student_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordProgress(ctx, f.ravi, tt.np)
			assert.Contains(t, fieldMap(t, err), tt.wantField)
		})
	}

	t.Run("best score is kept", func(t *testing.T) {
		p, err := f.svc.RecordProgress(ctx, f.ravi, curriculum.NewProgress{StudentID: f.anu.ID, ActivityID: "Keyboard", Score: 80, Completed: true})
		require.NoError(t, err)
		assert.Equal(t, "keyboard", p.ActivityID)
		assert.Equal(t, 1, p.Attempts)

		p, err = f.svc.RecordProgress(ctx, f.ravi, curriculum.NewProgress{StudentID: f.anu.ID, ActivityID: "keyboard", Score: 40})
		require.NoError(t, err)
		assert.Equal(t, 80, p.Score)
		assert.True(t, p.Completed)
		assert.Equal(t, 2, p.Attempts)
	})
}

func TestService_TeacherReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, act := range []string{"keyboard", "mouse_movement", "dev_detective"} {
		_, err := f.svc.RecordProgress(ctx, f.ravi, curriculum.NewProgress{StudentID: f.anu.ID, ActivityID: act, Score: 90, Completed: true})
		require.NoError(t, err)
	}

	r, err := f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	require.Len(t, r.Students, 2)
	assert.Equal(t, "Anu", r.Students[0].Name)
	assert.Equal(t, 3, r.Students[0].Completed)
	assert.Equal(t, 27, r.Students[0].Percentage)
	assert.Equal(t, 0, r.Students[1].Percentage)
	assert.Equal(t, curriculum.ModuleStats{
		ModuleID: "mouse_keyboard_quest", Name: "Mouse & Keyboard Quest", Total: 2, Completed: 1, Percentage: 50,
	}, r.Modules[0])
	assert.Nil(t, r.Teachers)
	assert.Equal(t, 1, f.cache.misses)

	// served from cache
	_, err = f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.misses)

	// recording progress invalidates it
	_, err = f.svc.RecordProgress(ctx, f.ravi, curriculum.NewProgress{StudentID: f.bala.ID, ActivityID: "keyboard", Completed: true})
	require.NoError(t, err)
	r, err = f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.misses)
	assert.Equal(t, 1, r.Students[1].Completed)
}

func TestService_PrincipalReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.RecordProgress(ctx, f.mira, curriculum.NewProgress{StudentID: f.chitra.ID, ActivityID: "phishing", Score: 100, Completed: true})
	require.NoError(t, err)

	r, err := f.svc.PrincipalReport(ctx, f.p.ID)
	require.NoError(t, err)
	require.Len(t, r.Students, 3)
	require.Len(t, r.Teachers, 2)

	byTeacher := map[string]curriculum.TeacherStats{}
	for _, ts := range r.Teachers {
		byTeacher[ts.TeacherID] = ts
	}
	assert.Equal(t, 2, byTeacher[f.ravi.TeacherID].Students)
	assert.Equal(t, 1, byTeacher[f.mira.TeacherID].Students)
	assert.Equal(t, 9, byTeacher[f.mira.TeacherID].Percentage)

	// a new result of any of the school's students invalidates the principal report
	_, err = f.svc.RecordProgress(ctx, f.ravi, curriculum.NewProgress{StudentID: f.anu.ID, ActivityID: "phishing", Completed: true})
	require.NoError(t, err)
	misses := f.cache.misses
	_, err = f.svc.PrincipalReport(ctx, f.p.ID)
	require.NoError(t, err)
	assert.Equal(t, misses+1, f.cache.misses)
}

func TestService_reportWithoutStudents(t *testing.T) {
	f := setup(t)
	r, err := f.svc.TeacherReport(context.Background(), "TCH999999")
	require.NoError(t, err)
	assert.Empty(t, r.Students)
	assert.Len(t, r.Modules, 3)
}

func TestService_InvalidateReports(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r, err := f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	require.Len(t, r.Students, 2)
	pr, err := f.svc.PrincipalReport(ctx, f.p.ID)
	require.NoError(t, err)
	require.Len(t, pr.Students, 3)

	testutil.CreateStudent(t, f.repo, f.ravi, "STU000004", "Deepa", "5")

	// cached until the roster change is announced
	r, err = f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	assert.Len(t, r.Students, 2)

	f.svc.InvalidateReports(ctx, f.p.ID, f.ravi.TeacherID)
	r, err = f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	assert.Len(t, r.Students, 3)
	pr, err = f.svc.PrincipalReport(ctx, f.p.ID)
	require.NoError(t, err)
	assert.Len(t, pr.Students, 4)

	// nothing to drop
	misses := f.cache.misses
	f.svc.InvalidateReports(ctx, "")
	_, err = f.svc.TeacherReport(ctx, f.ravi.TeacherID)
	require.NoError(t, err)
	assert.Equal(t, misses, f.cache.misses)
}
