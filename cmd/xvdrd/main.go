// Package main is the entry point for xvdrd.
package main

import (
	"os"

	"github.com/halvarsson/xvdrd/cmd/xvdrd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
