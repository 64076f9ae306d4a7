// Package release defines the canonical L4T release identifier as an
// ordered numeric triple with parsing and comparison helpers.
package release
