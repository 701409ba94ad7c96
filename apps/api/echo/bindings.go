package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

var orderingParam = "ordering"

// Ordering binds "?ordering=name,-created_at"; unknown fields are dropped by the services.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	TeacherLoginRequest struct {
		TeacherID string `json:"teacher_id" validate:"required,teacherid"`
		Password  string `json:"password" validate:"required"`
	}

	PrincipalLoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	ImportStudentsRequest struct {
		Rows []school.NewStudent `json:"rows"`
	}

	RegisterTeacherResponse struct {
		Teacher  school.Teacher `json:"teacher"`
		Password string         `json:"password"` // initial password, shown once
	}

	FinalSubmitResponse struct {
		Submitted int `json:"submitted"`
	}
)

func (lr *TeacherLoginRequest) Validate(validate *validator.Validate) error {
	lr.TeacherID = core.CleanString(lr.TeacherID)
	return validate.Struct(lr)
}

func (lr *PrincipalLoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}
