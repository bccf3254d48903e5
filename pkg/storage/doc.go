// Package storage lays out the local mirror.
//
// Each album lives at <output>/<album URL path>/ and each media entry at
// <album dir>/<sanitized file name>. Files are written to a hidden
// temporary file next to their destination and renamed into place, so a
// path that exists always holds a complete download.
package storage
