package core

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	cause := errors.New("email already taken")
	err := NewValidationError(cause, FieldError{Field: "email", Error: cause.Error()})

	assert.EqualError(t, err, "email already taken")
	assert.ErrorIs(t, err, cause)

	var vErr *ValidationError
	assert.True(t, errors.As(errors.Wrap(err, "registering"), &vErr))
	assert.Equal(t, map[string]string{"email": "email already taken"}, vErr.FieldMap())

	assert.Nil(t, NewValidationError(nil).(*ValidationError).FieldMap())
	assert.Empty(t, NewValidationError(nil).Error())
}

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("database is gone")
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "querying")))
	assert.True(t, IsShutdown(fmt.Errorf("querying: %w", err)))
	assert.False(t, IsShutdown(errors.New("database is gone")))
	assert.False(t, IsShutdown(nil))
}
