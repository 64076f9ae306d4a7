package release

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseImplicitPatch verifies two-component inputs gain a zero patch.
func TestParseImplicitPatch(t *testing.T) {
	t.Parallel()

	r, err := Parse("36.4")
	require.NoError(t, err)
	require.Equal(t, Release{Major: 36, Minor: 4, Patch: 0}, r)
	require.Equal(t, "36.4.0", r.String())
}

// TestParseFull verifies three-component inputs parse exactly.
func TestParseFull(t *testing.T) {
	t.Parallel()

	r, err := Parse("35.4.1")
	require.NoError(t, err)
	require.Equal(t, Release{Major: 35, Minor: 4, Patch: 1}, r)
}

// TestParseMalformed covers rejected shapes.
func TestParseMalformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "35", "35.4.1.2", "35.x", "-35.4", "35.-4.1", "a.b.c"} {
		_, err := Parse(input)
		require.ErrorIs(t, err, ErrMalformed, "input %q", input)
	}
}

// TestCompareNumeric ensures ordering is numeric, not lexicographic.
func TestCompareNumeric(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, MustParse("35.4.1").Compare(MustParse("35.3.1")))
	require.Equal(t, -1, MustParse("35.3.1").Compare(MustParse("35.4.1")))
	require.Equal(t, 0, MustParse("35.4.1").Compare(MustParse("35.4.1")))

	// Lexicographic comparison would get this one wrong.
	require.True(t, MustParse("35.9.0").Less(MustParse("35.10.0")))
	require.True(t, MustParse("32.7.4").Less(MustParse("36.4.0")))
}

// TestZero checks the zero-value convention.
func TestZero(t *testing.T) {
	t.Parallel()

	require.True(t, Release{}.IsZero())
	require.False(t, MustParse("35.4.1").IsZero())
}
