package ewf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetTableGrowth(t *testing.T) {
	var table offsetTable
	_, ok := table.get(0)
	assert.False(t, ok)

	e0 := &offsetEntry{fileOffset: 100}
	require := assert.New(t)
	require.NoError(table.set(0, e0, false))
	got, ok := table.get(0)
	require.True(ok)
	require.Equal(e0, got)
	require.Len(table.entries, 1)

	e5 := &offsetEntry{fileOffset: 500}
	require.NoError(table.set(5, e5, false))
	got, ok = table.get(5)
	require.True(ok)
	require.Equal(e5, got)
	require.Len(table.entries, 6)

	_, ok = table.get(3)
	require.False(ok)
}

func TestOffsetTableRejectsDoubleWrite(t *testing.T) {
	var table offsetTable
	e := &offsetEntry{fileOffset: 10}
	assert.NoError(t, table.set(2, e, false))

	err := table.set(2, &offsetEntry{fileOffset: 20}, false)
	assert.ErrorIs(t, err, ErrAlreadyWritten)

	// the delta path is allowed to overwrite.
	replacement := &offsetEntry{fileOffset: 30, delta: true}
	assert.NoError(t, table.set(2, replacement, true))
	got, ok := table.get(2)
	assert.True(t, ok)
	assert.Equal(t, replacement, got)
}

func TestOffsetTableRejectsNegativeIndex(t *testing.T) {
	var table offsetTable
	err := table.set(-1, &offsetEntry{}, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
