package transfer

import (
	"testing"

	"github.com/rtftp/rtftpd/internal/wire"
	"github.com/stretchr/testify/assert"
)

func TestNegotiateNoOptionsYieldsDefaultsAndNoOack(t *testing.T) {
	n, oack := negotiate(nil, 1000)
	assert.Equal(t, defaultBlksize, n.blksize)
	assert.Equal(t, defaultTimeoutSeconds, n.timeout)
	assert.Nil(t, n.tsize)
	assert.Empty(t, oack)
}

func TestNegotiateBlksizeWithinRangeIsHonored(t *testing.T) {
	opts := []wire.Option{{Name: "blksize", Value: "1024"}}
	n, oack := negotiate(opts, 0)
	assert.Equal(t, 1024, n.blksize)
	assert.Len(t, oack, 1)
	assert.Equal(t, "blksize", oack[0].Name)
	assert.Equal(t, "1024", oack[0].Value)
}

func TestNegotiateBlksizeClampedToMax(t *testing.T) {
	opts := []wire.Option{{Name: "blksize", Value: "999999"}}
	n, _ := negotiate(opts, 0)
	assert.Equal(t, maxBlksize, n.blksize)
}

func TestNegotiateBlksizeClampedToMin(t *testing.T) {
	opts := []wire.Option{{Name: "blksize", Value: "1"}}
	n, _ := negotiate(opts, 0)
	assert.Equal(t, minBlksize, n.blksize)
}

func TestNegotiateTimeoutClampedToRange(t *testing.T) {
	opts := []wire.Option{{Name: "timeout", Value: "0"}}
	n, _ := negotiate(opts, 0)
	assert.Equal(t, minTimeoutSeconds, n.timeout)

	opts = []wire.Option{{Name: "timeout", Value: "9000"}}
	n, _ = negotiate(opts, 0)
	assert.Equal(t, maxTimeoutSeconds, n.timeout)
}

func TestNegotiateTsizeReflectsResolvedSize(t *testing.T) {
	opts := []wire.Option{{Name: "tsize", Value: "0"}}
	n, oack := negotiate(opts, 424242)
	require := assert.New(t)
	require.NotNil(n.tsize)
	require.EqualValues(424242, *n.tsize)
	require.Len(oack, 1)
	require.Equal("424242", oack[0].Value)
}

func TestNegotiateCombinesMultipleOptions(t *testing.T) {
	opts := []wire.Option{
		{Name: "blksize", Value: "2048"},
		{Name: "tsize", Value: "0"},
		{Name: "timeout", Value: "10"},
	}
	n, oack := negotiate(opts, 55)
	assert.Equal(t, 2048, n.blksize)
	assert.Equal(t, 10, n.timeout)
	require := assert.New(t)
	require.NotNil(n.tsize)
	require.Len(oack, 3)
}

func TestHasOption(t *testing.T) {
	opts := []wire.Option{{Name: "tsize", Value: "0"}}
	assert.True(t, hasOption(opts, "tsize"))
	assert.False(t, hasOption(opts, "blksize"))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, clamp(5, 1, 10))
	assert.Equal(t, 1, clamp(-3, 1, 10))
	assert.Equal(t, 10, clamp(99, 1, 10))
}
