package revert

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/decision"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/repository/backup"
)

// fakeManager satisfies backup.Manager over an in-memory record list.
type fakeManager struct {
	records  []*backup.Record
	restored []*backup.Record
}

func (f *fakeManager) Create(_ context.Context, current release.Release) (*backup.Record, error) {
	return &backup.Record{SourceRelease: current}, nil
}

func (f *fakeManager) List(_ context.Context) ([]*backup.Record, error) {
	return f.records, nil
}

func (f *fakeManager) Select(_ context.Context, requested *release.Release) (*backup.Record, error) {
	if requested != nil {
		for _, record := range f.records {
			if record.SourceRelease.Equal(*requested) {
				return record, nil
			}
		}

		return nil, fmt.Errorf("%w: %s", backup.ErrBackupNotFound, requested)
	}

	switch len(f.records) {
	case 0:
		return nil, backup.ErrBackupNotFound
	case 1:
		return f.records[0], nil
	default:
		return nil, &backup.AmbiguousSelectionError{Records: f.records}
	}
}

func (f *fakeManager) Restore(_ context.Context, record *backup.Record) error {
	f.restored = append(f.restored, record)
	return nil
}

func (f *fakeManager) Remove(_ context.Context, _ *backup.Record) error {
	return nil
}

// scriptedProvider answers decisions from test-supplied functions.
type scriptedProvider struct {
	confirm func(prompt string) (bool, error)
	choose  func(title string, options []string) (int, error)
}

func (p *scriptedProvider) Confirm(_ context.Context, prompt string, _ bool) (bool, error) {
	if p.confirm == nil {
		return false, decision.ErrNeedsOperator
	}

	return p.confirm(prompt)
}

func (p *scriptedProvider) ChooseOne(_ context.Context, title string, options []string) (int, error) {
	if p.choose == nil {
		return 0, decision.ErrNeedsOperator
	}

	return p.choose(title, options)
}

func (p *scriptedProvider) RemediateSymlink(_ context.Context, _ string) (decision.SymlinkAction, error) {
	return decision.SymlinkAbort, decision.ErrNeedsOperator
}

func record(label string) *backup.Record {
	return &backup.Record{
		SourceRelease: release.MustParse(label),
		Path:          "/tmp/" + label + "_backup",
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestSoleRecordRestoresUnattended picks the only record implicitly.
func TestSoleRecordRestoresUnattended(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1")}}
	r := &runner{backups: manager, provider: decision.Unattended(true)}

	require.NoError(t, r.run(context.Background()))
	require.Len(t, manager.restored, 1)
	require.Equal(t, release.MustParse("35.3.1"), manager.restored[0].SourceRelease)
}

// TestAmbiguousSelectionNeedsOperator fails fast unattended when several
// records exist and none was requested.
func TestAmbiguousSelectionNeedsOperator(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1"), record("35.4.1")}}
	r := &runner{backups: manager, provider: decision.Unattended(true)}

	require.ErrorIs(t, r.run(context.Background()), decision.ErrNeedsOperator)
	require.Empty(t, manager.restored)
}

// TestAmbiguousSelectionSettledInteractively restores the chosen record.
func TestAmbiguousSelectionSettledInteractively(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1"), record("35.4.1")}}

	var seen []string

	r := &runner{
		backups: manager,
		provider: &scriptedProvider{
			choose: func(_ string, options []string) (int, error) {
				seen = options
				return 1, nil
			},
			confirm: func(string) (bool, error) { return true, nil },
		},
	}

	require.NoError(t, r.run(context.Background()))
	require.Len(t, seen, 2)
	require.Contains(t, seen[0], "35.3.1")
	require.Len(t, manager.restored, 1)
	require.Equal(t, release.MustParse("35.4.1"), manager.restored[0].SourceRelease)
}

// TestRequestedReleaseAcceptsResolverForms restores the record named by a
// free-form request.
func TestRequestedReleaseAcceptsResolverForms(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1"), record("35.4.1")}}
	r := &runner{backups: manager, provider: decision.Unattended(true), requested: "jetpack 5.1.2"}

	require.NoError(t, r.run(context.Background()))
	require.Len(t, manager.restored, 1)
	require.Equal(t, release.MustParse("35.4.1"), manager.restored[0].SourceRelease)
}

// TestKeywordRequestDisambiguates settles a multi-release keyword request
// through the decision provider before selecting a record.
func TestKeywordRequestDisambiguates(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1"), record("35.4.1")}}

	var seen []string

	r := &runner{
		backups:   manager,
		requested: "focal",
		provider: &scriptedProvider{
			choose: func(_ string, options []string) (int, error) {
				seen = options
				return 3, nil
			},
			confirm: func(string) (bool, error) { return true, nil },
		},
	}

	require.NoError(t, r.run(context.Background()))

	// All focal releases offered, in catalog order.
	require.Len(t, seen, 5)
	require.Contains(t, seen[0], "35.1.0")
	require.Contains(t, seen[3], "35.4.1")

	require.Len(t, manager.restored, 1)
	require.Equal(t, release.MustParse("35.4.1"), manager.restored[0].SourceRelease)
}

// TestKeywordRequestUnattendedNeedsOperator fails fast instead of guessing
// among the keyword's candidates.
func TestKeywordRequestUnattendedNeedsOperator(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1"), record("35.4.1")}}
	r := &runner{backups: manager, provider: decision.Unattended(true), requested: "focal"}

	require.ErrorIs(t, r.run(context.Background()), decision.ErrNeedsOperator)
	require.Empty(t, manager.restored)
}

// TestDeclinedConfirmationAborts treats a "no" as a graceful abort.
func TestDeclinedConfirmationAborts(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1")}}
	r := &runner{
		backups:  manager,
		provider: &scriptedProvider{confirm: func(string) (bool, error) { return false, nil }},
	}

	require.ErrorIs(t, r.run(context.Background()), decision.ErrAborted)
	require.Empty(t, manager.restored)
}

// TestMissingRecordSurfaces reports an explicit request with no matching
// record.
func TestMissingRecordSurfaces(t *testing.T) {
	t.Parallel()

	manager := &fakeManager{records: []*backup.Record{record("35.3.1")}}
	r := &runner{backups: manager, provider: decision.Unattended(true), requested: "36.4.0"}

	require.ErrorIs(t, r.run(context.Background()), backup.ErrBackupNotFound)
}
