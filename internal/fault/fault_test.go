package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindConflict, KindOf(Conflict("busy")))
	assert.Equal(t, KindInvalid, KindOf(Invalid("bad")))
	assert.Equal(t, KindCapacity, KindOf(Capacity("full")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindCapacity, cause, "storage rejected %d items", 3)

	require.True(t, IsCapacity(err))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "storage rejected 3 items", err.Error())

	// Kind survives another layer of fmt wrapping.
	outer := fmt.Errorf("settle: %w", err)
	assert.True(t, IsCapacity(outer))
	assert.True(t, errors.Is(outer, cause))
}

func TestIsMatchesByKind(t *testing.T) {
	err := NotFound("vault 9 not found")
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Kind: KindConflict}))
	assert.False(t, IsConflict(err))
}
