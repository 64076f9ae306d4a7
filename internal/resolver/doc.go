// Package resolver turns free-form operator input into a canonical release
// identifier.
//
// Classification runs through an ordered list of typed matchers, one per
// version namespace: explicit release pattern, JetPack SDK label,
// OS-distribution keyword, kernel-branch keyword. The first matching
// namespace wins and the matchers are mutually exclusive by construction.
// Keywords mapping onto several releases never auto-select; they surface an
// AmbiguityError carrying the candidate list in stable catalog order.
package resolver
