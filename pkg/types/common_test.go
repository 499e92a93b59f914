package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodes(t *testing.T) {
	base := errors.New("disk on fire")
	err := WrapError(ErrCodeBusy, "queue busy", base)

	assert.Equal(t, "BUSY: queue busy: disk on fire", err.Error())
	assert.ErrorIs(t, err, base)
	assert.True(t, IsErrCode(err, ErrCodeBusy))
	assert.False(t, IsErrCode(err, ErrCodeTimeout))

	wrapped := fmt.Errorf("unlink: %w", err)
	assert.True(t, IsErrCode(wrapped, ErrCodeBusy))
	assert.Equal(t, ErrCodeBusy, GetErrorCode(wrapped))

	assert.False(t, IsErrCode(base, ErrCodeBusy))
	assert.Equal(t, "", GetErrorCode(base))
	assert.False(t, IsErrCode(nil, ErrCodeBusy))
}
