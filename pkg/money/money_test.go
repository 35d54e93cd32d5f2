package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkamdem/livrazone/pkg/apperr"
)

func TestRound2HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 10.13, Round2(10.125))
	assert.Equal(t, 10.0, Round2(10.004))
	assert.Equal(t, 0.13, Round2(0.125))
}

func TestNormalizeRejectsNegative(t *testing.T) {
	_, err := Normalize(-1)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestNormalizeRounds(t *testing.T) {
	v, err := Normalize(15000.4)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), v)

	v, err = Normalize(15000.5)
	require.NoError(t, err)
	assert.Equal(t, int64(15001), v)
}

func TestMax0(t *testing.T) {
	assert.Equal(t, int64(0), Max0(-500))
	assert.Equal(t, int64(7), Max0(7))
}
