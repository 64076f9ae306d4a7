package release

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Release is the canonical L4T release identifier: a numeric
// major.minor.patch triple. The zero value is "no release".
type Release struct {
	// Major is the two-digit L4T line (e.g. 35, 36).
	Major int
	// Minor is the feature revision within the line.
	Minor int
	// Patch is the maintenance revision; omitted inputs mean zero.
	Patch int
}

// ErrMalformed is returned when an input is not a dotted numeric version.
var ErrMalformed = errors.New("malformed release identifier")

// Parse converts "NN.N" or "NN.N.N" into a Release.
// A two-component input is completed with an implicit zero patch.
func Parse(s string) (Release, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Release{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}

	numbers := make([]int, 3)

	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Release{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}

		numbers[i] = n
	}

	return Release{Major: numbers[0], Minor: numbers[1], Patch: numbers[2]}, nil
}

// MustParse is Parse for static tables; it panics on malformed input.
func MustParse(s string) Release {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return r
}

// String renders the full dotted triple, patch included.
func (r Release) String() string {
	return fmt.Sprintf("%d.%d.%d", r.Major, r.Minor, r.Patch)
}

// IsZero reports whether the release is unset.
func (r Release) IsZero() bool {
	return r == Release{}
}

// Compare orders releases numerically component by component.
// It returns -1, 0 or 1. String comparison is deliberately avoided:
// "35.10.0" must sort above "35.9.0".
func (r Release) Compare(o Release) int {
	pairs := [3][2]int{
		{r.Major, o.Major},
		{r.Minor, o.Minor},
		{r.Patch, o.Patch},
	}

	for _, pair := range pairs {
		switch {
		case pair[0] < pair[1]:
			return -1
		case pair[0] > pair[1]:
			return 1
		}
	}

	return 0
}

// Less reports whether r orders strictly before o.
func (r Release) Less(o Release) bool {
	return r.Compare(o) < 0
}

// Equal reports whether the two triples are identical.
func (r Release) Equal(o Release) bool {
	return r == o
}
