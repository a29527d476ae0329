package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsWrapSentinels(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{NotFound("student 4 not found"), ErrNotFound},
		{Capacity("room 101 is full"), ErrCapacity},
		{Conflict("room 101 already exists"), ErrConflict},
		{Transient("server unavailable"), ErrTransient},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("insert student: %w", tc.err)
		assert.True(t, errors.Is(wrapped, tc.kind), tc.err.Error())
	}
}

func TestValidationError(t *testing.T) {
	v := NewValidationError()
	assert.NoError(t, v.OrNil())

	v.Add("meno", "first")
	v.Add("meno", "second")
	v.Add("PSC", "bad postal code")

	err := v.OrNil()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "first", v.Fields["meno"])
	assert.Equal(t, "validation failed: PSC: bad postal code; meno: first", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "room 7 not found", Message(fmt.Errorf("x: %w", NotFound("room 7 not found"))))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}
