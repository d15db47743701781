package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanicError(t *testing.T) {
	base := errors.New("boom")
	assert.ErrorIs(t, PanicError(base), base)
	assert.EqualError(t, PanicError("bad"), "panic: bad")
}
