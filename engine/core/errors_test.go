package core

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := errors.Wrap(Fatalf(ErrPoolExhausted, "pool %d", 1), "allocating set")
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrPoolExhausted))
	assert.False(t, IsTransient(err))

	stale := AsTransient(errors.New("acquire: VK_ERROR_OUT_OF_DATE_KHR"))
	assert.True(t, IsTransient(stale))
	assert.True(t, errors.Is(stale, ErrSwapchainOutOfDate))
	assert.False(t, IsFatal(stale))

	violation := errors.AssertionFailedf("end without begin")
	assert.True(t, IsInvariantViolation(violation))
	assert.True(t, IsFatal(violation))

	assert.Nil(t, AsFatal(nil, ErrDeviceLost))
	assert.Nil(t, AsTransient(nil))
	assert.False(t, IsInvariantViolation(nil))
}
