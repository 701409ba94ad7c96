package sqlxrepos

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/school"
)

func Test_trapNoRowsErr(t *testing.T) {
	assert.ErrorIs(t, trapNoRowsErr(sql.ErrNoRows, school.ErrTeacherNotFound, "getting teacher"), school.ErrTeacherNotFound)

	err := trapNoRowsErr(sql.ErrConnDone, school.ErrTeacherNotFound, "getting teacher")
	assert.True(t, core.IsShutdown(err))
	assert.EqualError(t, err, "getting teacher: "+sql.ErrConnDone.Error())

	boom := errors.New("boom")
	err = trapNoRowsErr(boom, school.ErrTeacherNotFound, "getting teacher")
	assert.ErrorIs(t, err, boom)
	assert.False(t, core.IsShutdown(err))

	assert.NoError(t, wrapErr(nil, "noop"))
}
