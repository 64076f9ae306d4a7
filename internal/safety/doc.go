// Package safety inspects filesystem paths before any backup, restore or
// extraction touches them: containment under a fixed root, absence of
// symbolic links, and enumeration that stays inside its own subtree.
package safety
