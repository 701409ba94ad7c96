package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/school"
)

type teacherApi struct {
	svc           *school.Service
	curriculumSvc *curriculum.Service
}

func registerTeacherAPI(g *echo.Group, mw echo.MiddlewareFunc, svc *school.Service, curriculumSvc *curriculum.Service) {
	api := teacherApi{svc: svc, curriculumSvc: curriculumSvc}

	tg := g.Group("/teacher", mw)
	tg.GET("/me", api.me)
	tg.GET("/progress", api.report)
	tg.POST("/progress", api.recordProgress)

	sg := tg.Group("/students")
	sg.GET("", api.queryStudents)
	sg.POST("", api.createStudent)
	sg.POST("/import", api.importStudents)
	sg.POST("/final-submit", api.finalSubmit)
	sg.PUT("/:id", api.updateStudent)
	sg.DELETE("/:id", api.destroyStudent)
	sg.GET("/:id/history", api.studentHistory)
}

// Handlers

func (api *teacherApi) me(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) queryStudents(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	filter := new(school.StudentFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Student{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Students(ctx.Request().Context(), t.TeacherID, *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []school.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *teacherApi) createStudent(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var data school.NewStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	s, err := api.svc.RegisterStudent(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	api.curriculumSvc.InvalidateReports(ctx.Request().Context(), t.PrincipalID, t.TeacherID)
	return ctx.JSON(http.StatusCreated, s)
}

func (api *teacherApi) importStudents(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var data ImportStudentsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ImportStudentsRequest")
	}

	students, err := api.svc.ImportStudents(ctx.Request().Context(), t, data.Rows)
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	api.curriculumSvc.InvalidateReports(ctx.Request().Context(), t.PrincipalID, t.TeacherID)
	return ctx.JSON(http.StatusCreated, students)
}

func (api *teacherApi) updateStudent(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var data school.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}

	s, err := api.svc.UpdateStudent(ctx.Request().Context(), t, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	api.curriculumSvc.InvalidateReports(ctx.Request().Context(), t.PrincipalID, t.TeacherID)
	return ctx.JSON(http.StatusOK, s)
}

func (api *teacherApi) destroyStudent(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), t, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	api.curriculumSvc.InvalidateReports(ctx.Request().Context(), t.PrincipalID, t.TeacherID)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) studentHistory(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	edits, err := api.svc.StudentHistory(ctx.Request().Context(), t, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student history")
	}
	return ctx.JSON(http.StatusOK, edits)
}

func (api *teacherApi) finalSubmit(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.FinalSubmitStudents(ctx.Request().Context(), t)
	if err != nil {
		return errors.Wrap(err, "final-submitting students")
	}
	return ctx.JSON(http.StatusOK, FinalSubmitResponse{Submitted: n})
}

func (api *teacherApi) report(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	r, err := api.curriculumSvc.TeacherReport(ctx.Request().Context(), t.TeacherID)
	if err != nil {
		return errors.Wrap(err, "building teacher report")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *teacherApi) recordProgress(ctx echo.Context) error {
	t, err := contextTeacher(ctx)
	if err != nil {
		return err
	}
	var data curriculum.NewProgress
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgress")
	}

	p, err := api.curriculumSvc.RecordProgress(ctx.Request().Context(), t, data)
	if err != nil {
		return errors.Wrap(err, "recording progress")
	}
	return ctx.JSON(http.StatusOK, p)
}
