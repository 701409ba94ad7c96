package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memJar is a cookie jar honoring expiry the way a browser does.
type memJar struct {
	cookies map[string]*http.Cookie
}

func newMemJar() *memJar {
	return &memJar{cookies: make(map[string]*http.Cookie)}
}

func (j *memJar) Cookie(name string) (*http.Cookie, error) {
	c, ok := j.cookies[name]
	if !ok || c.MaxAge < 0 || (!c.Expires.IsZero() && !NowFunc().Before(c.Expires)) {
		return nil, http.ErrNoCookie
	}
	return c, nil
}

func (j *memJar) SetCookie(c *http.Cookie) {
	j.cookies[c.Name] = c
}

func newTestStore(t *testing.T, passPhrase string, opts StoreOptions) *Store {
	codec, err := NewXORCodec(passPhrase)
	require.NoError(t, err)
	return NewStore(codec, opts)
}

func TestStore_lifecycle(t *testing.T) {
	defer func() { NowFunc = time.Now }()

	now := time.Now()
	NowFunc = func() time.Time { return now }

	store := newTestStore(t, "secret123", StoreOptions{})
	jar := newMemJar()

	require.NoError(t, store.Persist(jar, Identity{Role: RoleTeacher, ID: "TCH4F9A2B"}))

	got, err := store.Recover(jar, RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, Identity{Role: RoleTeacher, ID: "TCH4F9A2B"}, got)

	// still there just before expiry
	NowFunc = func() time.Time { return now.Add(time.Hour - time.Second) }
	_, err = store.Recover(jar, RoleTeacher)
	assert.NoError(t, err)

	// expired
	NowFunc = func() time.Time { return now.Add(time.Hour) }
	_, err = store.Recover(jar, RoleTeacher)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_cookieAttributes(t *testing.T) {
	defer func() { NowFunc = time.Now }()

	now := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	NowFunc = func() time.Time { return now }

	tests := []struct {
		name       string
		opts       StoreOptions
		ident      Identity
		wantName   string
		wantMarker string
		wantSecure bool
		wantTTL    time.Duration
	}{
		{
			name: "teacher, dev", ident: Identity{Role: RoleTeacher, ID: "TCH4F9A2B"},
			wantName: "teacherId", wantMarker: "teacherFound", wantTTL: time.Hour,
		},
		{
			name: "principal, prod", opts: StoreOptions{Secure: true, TTL: 30 * time.Minute},
			ident:    Identity{Role: RolePrincipal, ID: "5e0c3a52-9b8e-4b6c-a4d1-1f0c1a2b3c4d"},
			wantName: "principalId", wantMarker: "principalFound", wantSecure: true, wantTTL: 30 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, "secret123", tt.opts)
			jar := newMemJar()
			require.NoError(t, store.Persist(jar, tt.ident))

			c, ok := jar.cookies[tt.wantName]
			require.True(t, ok)
			assert.Equal(t, now.Add(tt.wantTTL), c.Expires)
			assert.Equal(t, int(tt.wantTTL.Seconds()), c.MaxAge)
			assert.Equal(t, tt.wantSecure, c.Secure)
			assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/", c.Path)
			assert.NotEqual(t, tt.ident.ID, c.Value)

			m, ok := jar.cookies[tt.wantMarker]
			require.True(t, ok)
			assert.Equal(t, "true", m.Value)
			assert.False(t, m.HttpOnly)
		})
	}
}

func TestStore_Recover_notFound(t *testing.T) {
	store := newTestStore(t, "secret123", StoreOptions{})
	otherStore := newTestStore(t, "another-secret", StoreOptions{})

	emptyID := newMemJar()
	require.NoError(t, store.Persist(emptyID, Identity{Role: RoleTeacher, ID: ""}))

	crossKey := newMemJar()
	require.NoError(t, otherStore.Persist(crossKey, Identity{Role: RoleTeacher, ID: "TCH4F9A2B"}))

	setCookie := func(value string) *memJar {
		jar := newMemJar()
		jar.SetCookie(&http.Cookie{Name: "teacherId", Value: value})
		return jar
	}

	tests := []struct {
		name string
		jar  CookieJar
		role Role
	}{
		{name: "no cookie", jar: newMemJar(), role: RoleTeacher},
		{name: "empty cookie", jar: setCookie(""), role: RoleTeacher},
		{name: "malformed", jar: setCookie("not-a-valid-token"), role: RoleTeacher},
		{name: "extra separator", jar: setCookie("a.b.c"), role: RoleTeacher},
		{name: "empty id", jar: emptyID, role: RoleTeacher},
		{name: "other role", jar: emptyID, role: RolePrincipal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Recover(tt.jar, tt.role)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Equal(t, Identity{}, got)
		})
	}

	t.Run("cross key never panics", func(t *testing.T) {
		assert.NotPanics(t, func() {
			got, err := store.Recover(crossKey, RoleTeacher)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
			} else {
				assert.NotEqual(t, "TCH4F9A2B", got.ID)
			}
		})
	})
}

func TestStore_Persist_invalidRole(t *testing.T) {
	store := newTestStore(t, "secret123", StoreOptions{})
	err := store.Persist(newMemJar(), Identity{Role: "student", ID: "STU000001"})
	assert.Equal(t, ErrInvalidRole, err)
}

func TestStore_Clear(t *testing.T) {
	store := newTestStore(t, "secret123", StoreOptions{})
	jar := newMemJar()
	require.NoError(t, store.Persist(jar, Identity{Role: RoleTeacher, ID: "TCH4F9A2B"}))

	store.Clear(jar, RoleTeacher)

	_, err := store.Recover(jar, RoleTeacher)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, -1, jar.cookies["teacherFound"].MaxAge)
}

// httpJar adapts a request/response pair, as the API server does.
type httpJar struct {
	r *http.Request
	w http.ResponseWriter
}

func (j httpJar) Cookie(name string) (*http.Cookie, error) { return j.r.Cookie(name) }
func (j httpJar) SetCookie(c *http.Cookie)                 { http.SetCookie(j.w, c) }

func TestStore_overHTTP(t *testing.T) {
	store := newTestStore(t, "secret123", StoreOptions{Secure: true})

	// login response
	rec := httptest.NewRecorder()
	require.NoError(t, store.Persist(httpJar{r: httptest.NewRequest(http.MethodPost, "/", nil), w: rec}, Identity{Role: RoleTeacher, ID: "TCH4F9A2B"}))

	// next request sends the cookies back
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	got, err := store.Recover(httpJar{r: req, w: httptest.NewRecorder()}, RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "TCH4F9A2B", got.ID)
}
