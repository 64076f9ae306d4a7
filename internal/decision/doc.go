// Package decision models the suspension points of a pipeline run: yes/no
// confirmations, choose-one-of-N disambiguation, and per-symlink
// remediation.
//
// The core never guesses. Interactive runs route decisions to terminal
// forms; unattended runs apply fixed defaults and fail fast on choices that
// have none.
package decision
