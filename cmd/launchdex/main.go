// Package main provides the entry point for the launchdex CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/launchdex/cmd/launchdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
