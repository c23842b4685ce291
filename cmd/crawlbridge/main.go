// Package main provides the entry point for the crawlbridge CLI.
package main

import (
	"os"

	"github.com/crawlbridge/crawlbridge/cmd/crawlbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
