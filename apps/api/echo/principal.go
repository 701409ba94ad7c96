package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/identity"
	"github.com/trezcool/elimu/core/school"
)

type principalApi struct {
	svc           *school.Service
	curriculumSvc *curriculum.Service
	mailSvc       core.EmailService
}

type teacherWelcomeData struct {
	Name       string
	SchoolName string
	TeacherID  string
	Password   string
	LoginPath  string
}

func registerPrincipalAPI(
	g *echo.Group,
	mw echo.MiddlewareFunc,
	svc *school.Service,
	curriculumSvc *curriculum.Service,
	mailSvc core.EmailService,
) {
	api := principalApi{svc: svc, curriculumSvc: curriculumSvc, mailSvc: mailSvc}

	pg := g.Group("/principal", mw)
	pg.GET("/me", api.me)
	pg.GET("/progress", api.report)

	tg := pg.Group("/teachers")
	tg.GET("", api.queryTeachers)
	tg.POST("", api.createTeacher)
	tg.POST("/final-submit", api.finalSubmit)
	tg.PUT("/:id", api.updateTeacher)
	tg.DELETE("/:id", api.destroyTeacher)
	tg.GET("/:id/history", api.teacherHistory)
}

// Handlers

func (api *principalApi) me(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	sch, err := api.svc.GetSchool(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"principal": p, "school": sch})
}

func (api *principalApi) queryTeachers(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	filter := new(school.TeacherFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Teacher{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	teachers, err := api.svc.Teachers(ctx.Request().Context(), p.ID, *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []school.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *principalApi) createTeacher(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data school.NewTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}

	t, pwd, err := api.svc.RegisterTeacher(ctx.Request().Context(), p.ID, data)
	if err != nil {
		return errors.Wrap(err, "registering teacher")
	}

	sch, err := api.svc.GetSchool(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	api.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: t.Name, Address: t.Email}},
		Cc:           []mail.Address{{Name: p.Name, Address: p.Email}},
		Subject:      "Your teacher account",
		TemplateName: "teacher_welcome",
		TemplateData: teacherWelcomeData{
			Name:       t.Name,
			SchoolName: sch.Name,
			TeacherID:  t.TeacherID,
			Password:   pwd,
			LoginPath:  identity.RoleTeacher.LoginPath(),
		},
	})
	return ctx.JSON(http.StatusCreated, RegisterTeacherResponse{Teacher: t, Password: pwd})
}

func (api *principalApi) updateTeacher(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTeacher")
	}

	t, err := api.svc.UpdateTeacher(ctx.Request().Context(), p.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	api.curriculumSvc.InvalidateReports(ctx.Request().Context(), p.ID, t.TeacherID)
	return ctx.JSON(http.StatusOK, t)
}

func (api *principalApi) destroyTeacher(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteTeacher(ctx.Request().Context(), p.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	api.curriculumSvc.InvalidateReports(ctx.Request().Context(), p.ID)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *principalApi) teacherHistory(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	edits, err := api.svc.TeacherHistory(ctx.Request().Context(), p.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying teacher history")
	}
	return ctx.JSON(http.StatusOK, edits)
}

func (api *principalApi) finalSubmit(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.FinalSubmitTeachers(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "final-submitting teachers")
	}
	return ctx.JSON(http.StatusOK, FinalSubmitResponse{Submitted: n})
}

func (api *principalApi) report(ctx echo.Context) error {
	p, err := contextPrincipal(ctx)
	if err != nil {
		return err
	}
	r, err := api.curriculumSvc.PrincipalReport(ctx.Request().Context(), p.ID)
	if err != nil {
		return errors.Wrap(err, "building principal report")
	}
	return ctx.JSON(http.StatusOK, r)
}
