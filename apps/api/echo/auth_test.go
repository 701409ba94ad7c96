package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/identity"
	testutil "github.com/trezcool/elimu/tests"
)

func TestServer_home(t *testing.T) {
	f := setup(t)
	req, rec := newRequest(http.MethodGet, "/", nil, nil)
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Elimu API!", rec.Body.String())
}

func Test_authApi_teacherLogin(t *testing.T) {
	f := setup(t)
	testutil.CreateTeacher(t, f.repo, f.school, "TCH000001", "Mira", "mira@school.in", "secret123", false)

	tests := []httpTest{
		{name: "missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{
			name: "malformed teacher ID", body: []byte(`{"teacher_id": "ravi", "password": "secret123"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"teacher_id": "invalid teacher ID"}),
		},
		{
			name: "unknown teacher", body: []byte(`{"teacher_id": "TCH999999", "password": "secret123"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: []byte(`{"teacher_id": "TCH4F9A2B", "password": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive teacher", body: []byte(`{"teacher_id": "TCH000001", "password": "secret123"}`),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/teachers/login"
			rec := f.serve(tt)
			checkCodeAndData(t, tt, rec)
			assert.Nil(t, findCookie(rec, identity.RoleTeacher.CookieName()))
		})
	}

	t.Run("success", func(t *testing.T) {
		tt := httpTest{
			method:   http.MethodPost,
			path:     "/api/teachers/login",
			body:     []byte(`{"teacher_id": " TCH4F9A2B ", "password": "secret123"}`),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, f.teacher),
		}
		rec := f.serve(tt)
		checkCodeAndData(t, tt, rec)

		c := findCookie(rec, "teacherId")
		require.NotNil(t, c)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, 3600, c.MaxAge)
		id, err := f.store.Codec().Decode(c.Value)
		require.NoError(t, err)
		assert.Equal(t, f.teacher.TeacherID, id)

		marker := findCookie(rec, "teacherFound")
		require.NotNil(t, marker)
		assert.Equal(t, "true", marker.Value)
		assert.False(t, marker.HttpOnly)
	})
}

func Test_authApi_principalLogin(t *testing.T) {
	f := setup(t)

	tests := []httpTest{
		{
			name: "invalid email", body: []byte(`{"email": "asha", "password": "x"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "wrong password", body: []byte(`{"email": "asha@school.in", "password": "x"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "success", body: []byte(`{"email": "ASHA@school.in", "password": "Pr1ncipal!"}`),
			wantCode: http.StatusOK, wantData: marchallObj(t, f.principal),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/api/principals/login"
			rec := f.serve(tt)
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				c := findCookie(rec, "principalId")
				require.NotNil(t, c)
				id, err := f.store.Codec().Decode(c.Value)
				require.NoError(t, err)
				assert.Equal(t, f.principal.ID, id)
			}
		})
	}
}

func Test_authApi_logout(t *testing.T) {
	f := setup(t)
	rec := f.serve(httpTest{method: http.MethodPost, path: "/api/logout", cookie: f.teacherCookie(t)})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	for _, role := range identity.Roles {
		for _, name := range []string{role.CookieName(), role.MarkerName()} {
			c := findCookie(rec, name)
			require.NotNil(t, c, name)
			assert.Empty(t, c.Value)
			assert.Negative(t, c.MaxAge)
		}
	}
}

func Test_authenticator_middlewares(t *testing.T) {
	f := setup(t)
	inactive := testutil.CreateTeacher(t, f.repo, f.school, "TCH000001", "Mira", "mira@school.in", "secret123", false)

	tests := []httpTest{
		{name: "no cookie", path: "/api/teacher/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "garbage token", path: "/api/teacher/me", cookie: &http.Cookie{Name: "teacherId", Value: "not-a-token"},
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated),
		},
		{
			name: "principal cookie on teacher area", path: "/api/teacher/me", cookie: f.principalCookie(t),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated),
		},
		{
			name: "unknown teacher", path: "/api/teacher/me", cookie: f.identityCookie(t, identity.RoleTeacher, "TCH999999"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated),
		},
		{
			name: "inactive teacher", path: "/api/teacher/me", cookie: f.identityCookie(t, identity.RoleTeacher, inactive.TeacherID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "teacher", path: "/api/teacher/me", cookie: f.teacherCookie(t), wantCode: http.StatusOK, wantData: marchallObj(t, f.teacher)},
		{
			name: "teacher cookie on principal area", path: "/api/principal/teachers", cookie: f.teacherCookie(t),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated),
		},
		{
			name: "principal", path: "/api/principal/me", cookie: f.principalCookie(t), wantCode: http.StatusOK,
			wantData: marchallObj(t, map[string]interface{}{"principal": f.principal, "school": f.school}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, f.serve(tt))
		})
	}

	t.Run("html clients are redirected to the login page", func(t *testing.T) {
		for path, want := range map[string]string{
			"/api/teacher/students":   frontendBaseURL + "/Teacher/login",
			"/api/principal/teachers": frontendBaseURL + "/Principal/login",
		} {
			req, rec := newRequest(http.MethodGet, path, nil, nil)
			req.Header.Set("Accept", "text/html,application/xhtml+xml")
			f.app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusFound, rec.Code, path)
			assert.Equal(t, want, rec.Header().Get("Location"), path)
		}
	})

	t.Run("recovery failures are logged without the token", func(t *testing.T) {
		before := len(f.logs.debugEntries())
		f.serve(httpTest{path: "/api/principal/me", cookie: &http.Cookie{Name: "principalId", Value: "bm9wZQ"}})

		entries := f.logs.debugEntries()
		require.Len(t, entries, before+1)
		e := entries[before]
		assert.Equal(t, "identity not recovered", e.msg)
		require.Len(t, e.args, 1)
		fields, ok := e.args[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "principal", fields["role"])
		assert.Contains(t, fields["reason"], identity.ErrNotFound.Error())
		assert.Contains(t, fields["reason"], "malformed")
		assert.NotContains(t, fmt.Sprint(e.args...), "bm9wZQ")
	})

	t.Run("deleted teacher loses the session", func(t *testing.T) {
		gone := testutil.CreateTeacher(t, f.repo, f.school, "TCH000002", "Gone", "gone@school.in", "secret123", true)
		require.NoError(t, f.repo.DeleteTeacher(context.Background(), gone.ID))
		rec := f.serve(httpTest{path: "/api/teacher/me", cookie: f.identityCookie(t, identity.RoleTeacher, gone.TeacherID)})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		c := findCookie(rec, "teacherId")
		require.NotNil(t, c)
		assert.Negative(t, c.MaxAge)
	})
}
