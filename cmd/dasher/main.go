// Package main is the entry point for the dasher application.
package main

import (
	"os"

	"github.com/jmylchreest/dasher/cmd/dasher/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
