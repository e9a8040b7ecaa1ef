// Package main provides the entry point for the fusionsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/fusionsearch/cmd/fusionsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
