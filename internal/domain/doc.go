// Package domain contains the core entities of the downloader: the immutable
// Job that flows through the queue and the ChapterState the tracker records
// for it. It has no knowledge of queues, transports, or storage.
package domain
