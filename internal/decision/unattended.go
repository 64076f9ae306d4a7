package decision

import "context"

// UnattendedProvider never blocks. Confirmations take a fixed answer;
// choices among several options fail fast with ErrNeedsOperator.
type UnattendedProvider struct {
	// AssumeYes is the fixed answer for every confirmation.
	AssumeYes bool
}

// Unattended returns a provider for unattended runs.
func Unattended(assumeYes bool) *UnattendedProvider {
	return &UnattendedProvider{AssumeYes: assumeYes}
}

// Confirm answers with the fixed default immediately.
func (p *UnattendedProvider) Confirm(_ context.Context, _ string, _ bool) (bool, error) {
	return p.AssumeYes, nil
}

// ChooseOne cannot be decided without an operator.
func (p *UnattendedProvider) ChooseOne(_ context.Context, _ string, _ []string) (int, error) {
	return 0, ErrNeedsOperator
}

// RemediateSymlink cannot be decided without an operator; the safe fixed
// outcome is to abort before anything is copied.
func (p *UnattendedProvider) RemediateSymlink(_ context.Context, _ string) (SymlinkAction, error) {
	return SymlinkAbort, ErrNeedsOperator
}
