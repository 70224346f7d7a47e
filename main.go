package main

import (
	"os"

	"github.com/promptconduit/sessionsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
