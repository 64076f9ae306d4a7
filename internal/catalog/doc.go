// Package catalog holds the static mapping between the four version
// namespaces: L4T release identifiers, JetPack SDK labels, kernel branches
// and Ubuntu distributions.
//
// The catalog is built once at first use and is read-only afterwards.
// Keyword lookups preserve insertion order so that disambiguation lists
// shown to the operator are stable between runs.
package catalog
