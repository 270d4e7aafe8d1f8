package main

import (
	"os"

	"github.com/askelund/spotheat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
