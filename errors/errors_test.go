package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/go-sfs/sfs/errors"
	"github.com/stretchr/testify/assert"
)

func TestSfsErrorWithMessage(t *testing.T) {
	err := errors.ErrNotMounted.WithMessage("image.sfs")
	assert.Equal(t, "filesystem is not mounted: image.sfs", err.Error())
	assert.True(t, stderrors.Is(err, errors.ErrNotMounted))
}

func TestSfsErrorWrap(t *testing.T) {
	cause := stderrors.New("disk read failed")
	err := errors.ErrDeviceIO.Wrap(cause)

	assert.Equal(t, "block device I/O failed: disk read failed", err.Error())
	assert.True(t, stderrors.Is(err, errors.ErrDeviceIO))
	assert.True(t, stderrors.Is(err, cause))
}
