package user

import (
	stderrors "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

// Classification must hold under both Is implementations in play: testify
// and most consumers go through the standard library, the HTTP layer through
// the cockroachdb package.
func TestConflictClassification(t *testing.T) {
	err := conflict("username already exists")
	assert.True(t, stderrors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.EqualError(t, err, "username already exists")
	assert.False(t, stderrors.Is(err, ErrNotFound))
	assert.False(t, stderrors.Is(err, ErrValidation))
}

func TestValidationClassification(t *testing.T) {
	err := Validationf("invalid user id %q", "abc")
	assert.True(t, stderrors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrValidation))
	assert.EqualError(t, err, `invalid user id "abc"`)
	assert.False(t, stderrors.Is(err, ErrConflict))
}
