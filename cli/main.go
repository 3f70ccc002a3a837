package main

import (
	"os"

	"github.com/workwhile/automation/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
