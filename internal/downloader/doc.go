// Package downloader fetches the pages of a chapter over HTTP and writes them
// into a per-chapter directory under the configured output root.
//
// Each page is streamed into a temporary file, checked to actually be an
// image, and renamed into place as NNN.<ext>, with the extension taken from
// the file's magic bytes. A file lock on the chapter directory keeps two
// processes from writing the same chapter at once.
package downloader
