// Package contents parses Debian Contents indices and ranks packages by the
// number of file paths they ship.
//
// A Contents index maps every file path installed by a suite to the binary
// package(s) providing it, one path per line, with a comma-separated package
// column last. This package consumes such an index as a stream and builds a
// per-package file tally without materializing the index in memory.
//
// Reference: https://wiki.debian.org/DebianRepository/Format#A.22Contents.22_indices
package contents
