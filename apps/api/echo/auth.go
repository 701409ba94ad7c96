package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/identity"
	"github.com/trezcool/elimu/core/school"
)

const (
	contextIdentityKey  = "identity"
	contextTeacherKey   = "teacher"
	contextPrincipalKey = "principal"
)

var errNoCtxAccount = errors.New("account not found in echo.Context")

type authenticator struct {
	logger          core.Logger
	store           *identity.Store
	svc             *school.Service
	frontendBaseURL string
}

func newAuthenticator(conf *core.Config, logger core.Logger, store *identity.Store, svc *school.Service) *authenticator {
	return &authenticator{
		logger:          logger,
		store:           store,
		svc:             svc,
		frontendBaseURL: strings.TrimSuffix(conf.FrontendBaseURL, "/"),
	}
}

// unauthenticated sends HTML clients to the role's login page; API clients get a 401.
func (a *authenticator) unauthenticated(ctx echo.Context, role identity.Role) error {
	if strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML) {
		return ctx.Redirect(http.StatusFound, a.frontendBaseURL+role.LoginPath())
	}
	return errUnauthorized
}

// recoverIdentity recovers the caller's identity for role and stores it in the context.
func (a *authenticator) recoverIdentity(ctx echo.Context, role identity.Role) (identity.Identity, bool) {
	ident, err := a.store.Recover(ctx, role)
	if err != nil {
		// the reason only, never the cookie value
		a.logger.Debug("identity not recovered", map[string]interface{}{"role": string(role), "reason": err.Error()})
		return identity.Identity{}, false
	}
	ctx.Set(contextIdentityKey, ident)
	return ident, true
}

// teacherMiddleware loads the teacher whose identity the request carries.
func (a *authenticator) teacherMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ident, ok := a.recoverIdentity(ctx, identity.RoleTeacher)
			if !ok {
				return a.unauthenticated(ctx, identity.RoleTeacher)
			}
			t, err := a.svc.GetTeacher(ctx.Request().Context(), ident.ID)
			if err != nil {
				if errors.Is(err, school.ErrNotFound) {
					a.store.Clear(ctx, identity.RoleTeacher)
					return a.unauthenticated(ctx, identity.RoleTeacher)
				}
				return errors.Wrap(err, "getting teacher")
			}
			if !t.IsActive() {
				a.store.Clear(ctx, identity.RoleTeacher)
				return errAccountDeactivated
			}
			ctx.Set(contextTeacherKey, t)
			return next(ctx)
		}
	}
}

// principalMiddleware loads the principal whose identity the request carries.
func (a *authenticator) principalMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ident, ok := a.recoverIdentity(ctx, identity.RolePrincipal)
			if !ok {
				return a.unauthenticated(ctx, identity.RolePrincipal)
			}
			p, err := a.svc.GetPrincipal(ctx.Request().Context(), ident.ID)
			if err != nil {
				if errors.Is(err, school.ErrNotFound) {
					a.store.Clear(ctx, identity.RolePrincipal)
					return a.unauthenticated(ctx, identity.RolePrincipal)
				}
				return errors.Wrap(err, "getting principal")
			}
			ctx.Set(contextPrincipalKey, p)
			return next(ctx)
		}
	}
}

func contextIdentity(ctx echo.Context) (identity.Identity, bool) {
	ident, ok := ctx.Get(contextIdentityKey).(identity.Identity)
	return ident, ok
}

func contextTeacher(ctx echo.Context) (school.Teacher, error) {
	if t, ok := ctx.Get(contextTeacherKey).(school.Teacher); ok {
		return t, nil
	}
	return school.Teacher{}, errNoCtxAccount
}

func contextPrincipal(ctx echo.Context) (school.Principal, error) {
	if p, ok := ctx.Get(contextPrincipalKey).(school.Principal); ok {
		return p, nil
	}
	return school.Principal{}, errNoCtxAccount
}

type authApi struct {
	auth     *authenticator
	svc      *school.Service
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, auth *authenticator, svc *school.Service, validate *validator.Validate) {
	api := authApi{auth: auth, svc: svc, validate: validate}

	// TODO: rate limit the login endpoints
	g.POST("/teachers/login", api.teacherLogin)
	g.POST("/principals/login", api.principalLogin)
	g.POST("/logout", api.logout)
}

// Handlers

func (api *authApi) teacherLogin(ctx echo.Context) error {
	var data TeacherLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.AuthenticateTeacher(ctx.Request().Context(), data.TeacherID, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating teacher")
	}
	if err = api.auth.store.Persist(ctx, identity.Identity{Role: identity.RoleTeacher, ID: t.TeacherID}); err != nil {
		return errors.Wrap(err, "persisting identity")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *authApi) principalLogin(ctx echo.Context) error {
	var data PrincipalLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PrincipalLoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.AuthenticatePrincipal(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating principal")
	}
	if err = api.auth.store.Persist(ctx, identity.Identity{Role: identity.RolePrincipal, ID: p.ID}); err != nil {
		return errors.Wrap(err, "persisting identity")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *authApi) logout(ctx echo.Context) error {
	for _, role := range identity.Roles {
		api.auth.store.Clear(ctx, role)
	}
	return ctx.NoContent(http.StatusNoContent)
}
