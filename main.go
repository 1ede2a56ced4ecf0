package main

import (
	"os"

	"github.com/paulyc/openmaptiles-tools/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
