// Package revert restores a previously taken backup record over the live
// boot partition and module tree, undoing a kernel upgrade. The record to
// restore is chosen explicitly by the operator, implicitly when only one
// exists, or interactively when several do.
package revert
