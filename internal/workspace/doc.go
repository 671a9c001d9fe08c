// Package workspace maps builds to their on-disk directories.
//
// Build working copies live under <runtime>/builds/<project>/<build>. Tools
// that publish artifacts write under <public>/artifacts/<tool>/<project>.
// Project directories may be symlinks to shared storage; removal deletes the
// link itself and never follows it.
package workspace
