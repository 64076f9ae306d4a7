package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/catalog"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

var (
	// ErrUnknownInput is returned when the input matches no namespace pattern.
	ErrUnknownInput = errors.New("input matches no known version format")
	// ErrUnsupportedVersion is returned when the input matched a namespace
	// pattern but the catalog has no entry for it.
	ErrUnsupportedVersion = errors.New("version is not listed in the catalog")
)

// AmbiguityError is returned when a keyword maps to several releases.
// Candidates keep catalog insertion order; the caller must obtain an
// explicit selection and resume via ForRelease.
type AmbiguityError struct {
	// Input is the original operator input.
	Input string
	// Candidates are the releases sharing the keyword, in stable order.
	Candidates []release.Release
}

// Error describes the ambiguity without picking a side.
func (e *AmbiguityError) Error() string {
	labels := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		labels = append(labels, c.String())
	}

	return fmt.Sprintf("%q matches several releases: %s", e.Input, strings.Join(labels, ", "))
}

// Resolution is the outcome of resolving one operator input.
type Resolution struct {
	// Input is the original operator input, untrimmed.
	Input string
	// Target is the canonical release identifier.
	Target release.Release
	// SDK, KernelBranch and Distribution are best-effort display
	// identifiers; any of them may be empty for unlisted releases.
	SDK          string
	KernelBranch string
	Distribution string
	// Rebuild is set when the target equals the currently running release.
	Rebuild bool
}

// Resolve normalizes free-form input and classifies it through the ordered
// matcher list. The first matching namespace wins. A multi-candidate keyword
// yields an *AmbiguityError for the caller's decision provider.
func Resolve(input string, current release.Release, cat *catalog.Catalog) (*Resolution, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty input", ErrUnknownInput)
	}

	for _, m := range matchers(cat) {
		outcome, ok, err := m.match(normalized)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		if len(outcome.candidates) > 1 {
			return nil, &AmbiguityError{Input: input, Candidates: outcome.candidates}
		}

		target := outcome.target
		if len(outcome.candidates) == 1 {
			target = outcome.candidates[0]
		}

		return ForRelease(input, target, current, cat), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownInput, input)
}

// ForRelease builds a Resolution for an already-chosen release, filling the
// display identifiers from the catalog where available. It is also the
// continuation after an ambiguity has been settled by the operator.
func ForRelease(input string, target, current release.Release, cat *catalog.Catalog) *Resolution {
	res := &Resolution{
		Input:   input,
		Target:  target,
		Rebuild: !current.IsZero() && target.Equal(current),
	}

	if info, ok := cat.Info(target); ok {
		res.SDK = info.SDK
		res.KernelBranch = info.KernelBranch
		res.Distribution = info.Distribution
	}

	return res
}
