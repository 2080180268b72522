package main

import (
	"os"

	"github.com/finsim/plan-simulator/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
