package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core/curriculum"
)

func registerCurriculumAPI(g *echo.Group, svc *curriculum.Service) {
	g.GET("/curriculum", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, svc.Catalog())
	})
}
