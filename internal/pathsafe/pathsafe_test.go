package pathsafe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAcceptsOrdinaryPath(t *testing.T) {
	clean, err := Sanitize("grub/grub.cfg")
	require.NoError(t, err)
	assert.Equal(t, "grub/grub.cfg", clean)
}

func TestSanitizeStripsLeadingSlash(t *testing.T) {
	clean, err := Sanitize("/kernel.img")
	require.NoError(t, err)
	assert.Equal(t, "kernel.img", clean)
}

func TestSanitizeRejectsEmpty(t *testing.T) {
	_, err := Sanitize("")
	assert.ErrorIs(t, err, ErrUnsafe)
}

func TestSanitizeRejectsTraversal(t *testing.T) {
	cases := []string{
		"../../etc/shadow",
		"../etc/passwd",
		"a/../../b",
		"..",
	}
	for _, c := range cases {
		_, err := Sanitize(c)
		assert.ErrorIsf(t, err, ErrUnsafe, "case %q", c)
	}
}

func TestSanitizeRejectsNul(t *testing.T) {
	_, err := Sanitize("foo\x00bar")
	assert.ErrorIs(t, err, ErrUnsafe)
}

func TestSanitizeTreatsBackslashAsLiteral(t *testing.T) {
	clean, err := Sanitize(`..\..\windows`)
	require.NoError(t, err)
	assert.Equal(t, `..\..\windows`, clean)
}

func TestSanitizeCollapsesInternalDotDot(t *testing.T) {
	clean, err := Sanitize("a/b/../c")
	require.NoError(t, err)
	assert.Equal(t, "a/c", clean)
}
