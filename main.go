package main

import (
	"os"

	"github.com/imishinist/wmg-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
