package errors

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsType(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		assert.True(t, IsType(NotFound("commit abc not found"), ErrorTypeNotFound))
		assert.False(t, IsType(NotFound("x"), ErrorTypePrecondition))
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("checking out: %w", Precondition("no commit id given"))
		assert.True(t, IsType(err, ErrorTypePrecondition))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, IsType(os.ErrNotExist, ErrorTypeNotFound))
		assert.False(t, IsType(nil, ErrorTypeIO))
	})
}

func TestIOErrorUnwrap(t *testing.T) {
	err := IO("reading a.txt", os.ErrPermission)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "reading a.txt: "+os.ErrPermission.Error(), err.Error())
}
