package main

import (
	"os"

	"github.com/tangramnet/txfetch/cmd/txfetch/commands"
)

func main() {
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
