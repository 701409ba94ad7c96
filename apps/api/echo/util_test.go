package echoapi_test

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/identity"
	"github.com/trezcool/elimu/core/school"
	cachesvc "github.com/trezcool/elimu/services/cache"
	emailsvc "github.com/trezcool/elimu/services/email"
	logsvc "github.com/trezcool/elimu/services/logger"
	dummydb "github.com/trezcool/elimu/storage/database/dummy"
	testutil "github.com/trezcool/elimu/tests"
)

const frontendBaseURL = "http://localhost:3000"

var errNotAuthenticated = httpErr{Error: "user not authenticated"}

type logEntry struct {
	msg  string
	args []interface{}
}

// recordingLogger keeps the Debug entries it forwards.
type recordingLogger struct {
	core.Logger
	mu    sync.Mutex
	debug []logEntry
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) {
	l.mu.Lock()
	l.debug = append(l.debug, logEntry{msg: msg, args: args})
	l.mu.Unlock()
	l.Logger.Debug(msg, args...)
}

func (l *recordingLogger) debugEntries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.debug...)
}

type fixture struct {
	app       *echoapi.Server
	logs      *recordingLogger
	repo      school.Repository
	store     *identity.Store
	mailSvc   *emailsvc.ConsoleServiceMock
	principal school.Principal
	school    school.School
	teacher   school.Teacher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Elimu",
		FrontendBaseURL: frontendBaseURL,
		Email:           core.EmailConfig{Backend: core.EmailConsole, FromAddress: "no-reply@elimu.test"},
		Identity:        core.IdentityConfig{PassPhrase: "elimu-test-pass-phrase", Codec: core.CodecXOR},
		Server:          core.ServerConfig{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second},
	}
	logger := &recordingLogger{Logger: logsvc.New("TEST: ", log.Lshortfile, conf)}

	db := dummydb.Open()
	repo := dummydb.NewSchoolRepository(db)
	validate, translator := testutil.NewValidator()
	cat, err := curriculum.LoadCatalog()
	require.NoError(t, err)

	codec, err := identity.NewCodec(conf.Identity.Codec, conf.Identity.PassPhrase)
	require.NoError(t, err)
	store := identity.NewStore(codec, identity.StoreOptions{TTL: time.Hour})

	schoolSvc := school.NewService(repo, validate, translator)
	curriculumSvc := curriculum.NewService(
		cat, dummydb.NewProgressRepository(db), repo, cachesvc.NewMemoryCache(time.Minute), validate, logger,
	)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	f := &fixture{
		app:     echoapi.NewServer(conf, logger, schoolSvc, curriculumSvc, store, mailSvc, validate, translator),
		logs:    logger,
		repo:    repo,
		store:   store,
		mailSvc: mailSvc,
	}
	f.principal, f.school = testutil.CreatePrincipal(t, repo, "Asha", "asha@school.in", "Pr1ncipal!")
	f.teacher = testutil.CreateTeacher(t, repo, f.school, "TCH4F9A2B", "Ravi", "ravi@school.in", "secret123", true)
	return f
}

// identityCookie returns the cookie a browser would send after logging in as ident.
func (f *fixture) identityCookie(t *testing.T, role identity.Role, id string) *http.Cookie {
	t.Helper()
	token, err := f.store.Codec().Encode(id)
	require.NoError(t, err)
	return &http.Cookie{Name: role.CookieName(), Value: token}
}

func (f *fixture) teacherCookie(t *testing.T) *http.Cookie {
	return f.identityCookie(t, identity.RoleTeacher, f.teacher.TeacherID)
}

func (f *fixture) principalCookie(t *testing.T) *http.Cookie {
	return f.identityCookie(t, identity.RolePrincipal, f.principal.ID)
}

func (f *fixture) serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newRequest(tt.method, tt.path, tt.cookie, tt.body)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	cookie   *http.Cookie
	wantCode int
	wantData []byte
}

func newRequest(method, path string, cookie *http.Cookie, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData compares the response body only when tt.wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
