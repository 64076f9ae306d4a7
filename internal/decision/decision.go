package decision

import (
	"context"
	"errors"
)

// SymlinkAction is the operator's choice for one offending symbolic link
// found during the pre-backup scan.
type SymlinkAction int

const (
	// SymlinkRemove deletes the link and continues.
	SymlinkRemove SymlinkAction = iota
	// SymlinkSkip leaves the link in place and continues.
	SymlinkSkip
	// SymlinkAbort terminates the entire run immediately.
	SymlinkAbort
)

// String renders the action for prompts and logs.
func (a SymlinkAction) String() string {
	switch a {
	case SymlinkRemove:
		return "remove"
	case SymlinkSkip:
		return "skip"
	case SymlinkAbort:
		return "abort"
	default:
		return "unknown"
	}
}

var (
	// ErrNeedsOperator is returned by the unattended provider for choices
	// that have no safe fixed default. The run fails fast instead of
	// guessing.
	ErrNeedsOperator = errors.New("decision requires an operator; re-run attended or pass an explicit selection")

	// ErrAborted is returned when the operator deliberately terminates the
	// run at a suspension point. It is a graceful outcome, not a failure.
	ErrAborted = errors.New("aborted by operator")
)

// Provider supplies the decisions the pipeline suspends on. Implementations
// either ask a human (interactive) or apply fixed defaults (unattended).
type Provider interface {
	// Confirm asks a yes/no question and reports the answer.
	Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error)
	// ChooseOne presents options in the given order and returns the index
	// of the selection. The order is significant and must be preserved.
	ChooseOne(ctx context.Context, title string, options []string) (int, error)
	// RemediateSymlink decides the fate of one offending symbolic link.
	RemediateSymlink(ctx context.Context, path string) (SymlinkAction, error)
}
