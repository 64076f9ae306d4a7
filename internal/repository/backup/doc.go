// Package backup creates, enumerates and restores snapshots of the live
// boot partition and kernel module tree.
//
// Each snapshot is a record directory under a fixed backup root, named
// deterministically after its source release, holding mirrored boot and
// module subtrees plus a YAML manifest with SHA-512 checksums of the boot
// files. Restores verify those checksums before any live file is replaced.
package backup
