package token

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshToken(t *testing.T) {
	a, err := NewRefreshToken()
	require.NoError(t, err)
	b, err := NewRefreshToken()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), a)
	assert.NotEqual(t, a, b)
}

func TestNewNumericCode_SixDigits(t *testing.T) {
	six := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		c, err := NewNumericCode(6)
		require.NoError(t, err)
		assert.Regexp(t, six, c)
	}
}

func TestNewSecret_Length(t *testing.T) {
	s, err := NewSecret(32)
	require.NoError(t, err)
	assert.Len(t, s, 43)
}
