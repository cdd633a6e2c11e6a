package errors

import (
	stderrors "errors"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_As(t *testing.T) {
	err := errors.Wrap(NewValidationError("user_id", "nobody"), "constructing envelope")

	var target *ValidationError
	require.True(t, stderrors.As(err, &target))
	assert.Equal(t, "user_id", target.Field)
	assert.Equal(t, "nobody", target.Value)
	assert.True(t, IsValidationError(err))
	assert.False(t, IsDecodeError(err))
}

func TestDecodeError_UnwrapsCause(t *testing.T) {
	cause := stderrors.New("illegal base64 data at input byte 3")
	err := NewDecodeError("base64", []byte("%%%"), cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsDecodeError(err))
	assert.Contains(t, err.Error(), "base64")
}

func TestNewCollaboratorError_NilCause(t *testing.T) {
	assert.NoError(t, NewCollaboratorError("imap", "fetch", nil))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil))
	assert.Equal(t, "validation", Kind(NewValidationError("type", "x")))
	assert.Equal(t, "decode", Kind(NewDecodeError("json", nil, nil)))
	assert.Equal(t, "routing", Kind(NewRoutingError("9999", "unknown message type")))
	assert.Equal(t, "collaborator", Kind(NewCollaboratorError("postgres", "insert", ErrNotFound)))
	assert.Equal(t, "*errors.fundamental", Kind(errors.New("boom")))
}
