// Package library walks configured directory roots and turns the video files
// it finds into identity observations.
//
// Each root names a category (its base name, upper-cased); each file's
// immediate parent directory names the subtype. Hidden files and directories
// are skipped. Unreadable subtrees are logged and skipped rather than failing
// the walk.
package library
