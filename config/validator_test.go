package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

type mockValidator struct {
	err error
}

func (m mockValidator) Validate() error {
	return m.err
}

func TestValidateAll_Success(t *testing.T) {
	assert.NoError(t, ValidateAll(mockValidator{}, mockValidator{}))
	assert.NoError(t, ValidateAll())
}

func TestValidateAll_CollectsEveryFailure(t *testing.T) {
	first := errors.New("first error")
	second := errors.New("second error")

	err := ValidateAll(mockValidator{err: first}, mockValidator{}, mockValidator{err: second})
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Len(t, multierr.Errors(err), 2)
}
