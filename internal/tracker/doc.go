// Package tracker keeps the last known download state of every chapter.
//
// It learns about a chapter from three places: the host records a job as
// queued when it is accepted, a Downloader wrapper records it as downloading
// and then completed or cancelled, and download_failed events broadcast by the
// queue processor mark it failed.
package tracker
