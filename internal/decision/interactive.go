package decision

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
)

// InteractiveProvider asks the operator through terminal forms.
type InteractiveProvider struct{}

// Interactive returns a provider backed by terminal prompts.
func Interactive() *InteractiveProvider {
	return &InteractiveProvider{}
}

// Confirm renders a yes/no prompt.
func (p *InteractiveProvider) Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	answer := defaultYes

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(prompt).
			Affirmative("Yes").
			Negative("No").
			Value(&answer),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}

	return answer, nil
}

// ChooseOne renders a single-select list preserving option order.
func (p *InteractiveProvider) ChooseOne(ctx context.Context, title string, options []string) (int, error) {
	items := make([]huh.Option[int], 0, len(options))
	for i, option := range options {
		items = append(items, huh.NewOption(option, i))
	}

	var selected int

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[int]().
			Title(title).
			Options(items...).
			Value(&selected),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("selection prompt: %w", err)
	}

	return selected, nil
}

// RemediateSymlink asks what to do with one offending link.
func (p *InteractiveProvider) RemediateSymlink(ctx context.Context, path string) (SymlinkAction, error) {
	action := SymlinkSkip

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[SymlinkAction]().
			Title(fmt.Sprintf("Symbolic link found: %s", path)).
			Options(
				huh.NewOption("Remove the link and continue", SymlinkRemove),
				huh.NewOption("Keep the link and continue", SymlinkSkip),
				huh.NewOption("Abort the run", SymlinkAbort),
			).
			Value(&action),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return SymlinkAbort, fmt.Errorf("symlink prompt: %w", err)
	}

	return action, nil
}
