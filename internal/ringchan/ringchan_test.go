package ringchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrySend_FailsWhenFull(t *testing.T) {
	rc := New[int](2)

	assert.True(t, rc.TrySend(1))
	assert.True(t, rc.TrySend(2))
	assert.False(t, rc.TrySend(3))

	assert.Equal(t, 2, rc.Len())
	assert.Equal(t, int64(1), rc.Dropped())
	assert.Equal(t, int64(2), rc.Written())
}

func TestForceSend_EvictsOldest(t *testing.T) {
	rc := New[int](2)

	assert.False(t, rc.ForceSend(1))
	assert.False(t, rc.ForceSend(2))
	assert.True(t, rc.ForceSend(3))

	assert.Equal(t, 2, <-rc.C())
	assert.Equal(t, 3, <-rc.C())
	assert.Equal(t, int64(1), rc.Dropped())
}

func TestClose_EndsRange(t *testing.T) {
	rc := New[int](4)
	rc.TrySend(1)
	rc.TrySend(2)
	rc.Close()

	var got []int
	for v := range rc.C() {
		got = append(got, v)
	}
	require.Equal(t, []int{1, 2}, got)
}

func TestNew_PanicsOnInvalidCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}
