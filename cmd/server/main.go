// Package main implements the chapterq server: an HTTP control surface over
// a single-flight chapter download queue, plus migration and token commands.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
